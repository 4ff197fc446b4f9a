package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by operations on a channel after Close
var ErrClosed = goerr.New("agent channel is closed")

type (
	// ProgressHandler receives the logs of each progress event
	ProgressHandler func(ctx context.Context, logs []model.LogEntry) error
	// StateHandler receives every new snapshot
	StateHandler func(ctx context.Context, snap model.Snapshot) error
	// MessageHandler receives assistant replies
	MessageHandler func(ctx context.Context, msg model.AssistantMessage) error
)

// Channel is a live shared-state session with one remote agent.
//
// All state changes, inbound or local, are applied by a single loop, one
// message at a time, and published as an immutable Snapshot. Handlers run on
// that loop in arrival order and must not call Close.
type Channel struct {
	name     string
	threadID model.ThreadID
	conn     adapter.AgentConn
	logger   *slog.Logger

	snapshot atomic.Pointer[model.Snapshot]
	local    chan localUpdate

	progress registry[ProgressHandler]
	state    registry[StateHandler]
	message  registry[MessageHandler]

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	closed    atomic.Bool
	closeOnce sync.Once
}

type localUpdate struct {
	patch   *model.StatePatch
	applied chan model.Snapshot
}

// Option configures Open
type Option func(*Channel)

// WithProgressHandler subscribes to progress events from the moment the
// channel opens
func WithProgressHandler(key string, h ProgressHandler) Option {
	return func(c *Channel) { c.progress.set(key, h) }
}

// WithStateHandler subscribes to snapshots from the moment the channel opens
func WithStateHandler(key string, h StateHandler) Option {
	return func(c *Channel) { c.state.set(key, h) }
}

// WithMessageHandler subscribes to assistant replies from the moment the
// channel opens
func WithMessageHandler(key string, h MessageHandler) Option {
	return func(c *Channel) { c.message.set(key, h) }
}

// WithThreadID resumes an existing conversation instead of starting a new one
func WithThreadID(id model.ThreadID) Option {
	return func(c *Channel) { c.threadID = id }
}

// Open connects to endpoint, starts a session with the agent called name and
// seeds the shared state with initial. initial.Model is required.
func Open(ctx context.Context, dialer adapter.AgentDialer, endpoint, name string, initial model.AgentState, opts ...Option) (*Channel, error) {
	if name == "" {
		return nil, goerr.New("agent name is required")
	}
	if initial.Model == "" {
		return nil, goerr.New("initial state requires a model", goerr.V("agent", name))
	}

	c := &Channel{
		name:     name,
		threadID: model.NewThreadID(),
		local:    make(chan localUpdate),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.From(ctx).With("agent", name, "thread_id", c.threadID)
	c.snapshot.Store(&model.Snapshot{Version: 1, State: initial.Clone()})

	conn, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open agent channel", goerr.V("agent", name))
	}
	c.conn = conn

	seed := initial.Clone()
	if err := conn.Write(ctx, &model.ClientMessage{
		Type:     model.ClientMessageConnect,
		Agent:    name,
		ThreadID: c.threadID,
		State:    &seed,
	}); err != nil {
		_ = conn.Close()
		return nil, goerr.Wrap(err, "failed to start agent session", goerr.V("agent", name))
	}

	// the session outlives the dial context but keeps its values
	c.ctx, c.cancel = context.WithCancel(logging.With(context.WithoutCancel(ctx), c.logger))
	c.start()

	c.logger.Info("agent channel opened", "endpoint", endpoint)
	return c, nil
}

func (c *Channel) start() {
	g, ctx := errgroup.WithContext(c.ctx)
	inbound := make(chan *model.AgentEvent)

	g.Go(func() error { return c.readLoop(ctx, inbound) })
	g.Go(func() error { return c.applyLoop(ctx, inbound) })

	go func() {
		err := g.Wait()
		if err != nil && !c.closed.Load() && !adapter.IsNormalClosure(err) {
			c.err = err
			c.logger.Error("agent channel terminated", "error", err)
		} else {
			c.logger.Debug("agent channel stopped")
		}
		close(c.done)
	}()
}

func (c *Channel) readLoop(ctx context.Context, inbound chan<- *model.AgentEvent) error {
	for {
		ev, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case inbound <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Channel) applyLoop(ctx context.Context, inbound <-chan *model.AgentEvent) error {
	for {
		select {
		case ev := <-inbound:
			c.handleEvent(ctx, ev)

		case req := <-c.local:
			snap := c.apply(req.patch)
			req.applied <- snap
			c.dispatchState(ctx, snap)

		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Channel) handleEvent(ctx context.Context, ev *model.AgentEvent) {
	switch ev.Type {
	case model.AgentEventState:
		if ev.State == nil {
			return
		}
		c.dispatchState(ctx, c.apply(ev.State))

	case model.AgentEventProgress:
		if ev.State == nil {
			return
		}
		snap := c.apply(ev.State)
		if ev.State.HasLogs() {
			logs := snap.State.Clone().Logs
			for _, e := range c.progress.list() {
				h := e.handler
				c.invoke(ctx, "progress", e.key, func() error { return h(ctx, logs) })
			}
		}
		c.dispatchState(ctx, snap)

	case model.AgentEventMessage:
		msg := model.AssistantMessage{Role: ev.Role, Content: ev.Content}
		if msg.Role == "" {
			msg.Role = "assistant"
		}
		c.dispatchMessage(ctx, msg)

	case model.AgentEventError:
		c.logger.Warn("agent reported an error", "error", ev.Error)
		c.dispatchMessage(ctx, model.AssistantMessage{Role: "error", Content: ev.Error})

	default:
		c.logger.Debug("ignoring unknown agent event", "type", ev.Type)
	}
}

// apply publishes a new snapshot. Only the apply loop calls it.
func (c *Channel) apply(patch *model.StatePatch) model.Snapshot {
	cur := c.snapshot.Load()
	next := &model.Snapshot{
		Version: cur.Version + 1,
		State:   patch.Apply(cur.State),
	}
	c.snapshot.Store(next)
	return model.Snapshot{Version: next.Version, State: next.State.Clone()}
}

func (c *Channel) dispatchState(ctx context.Context, snap model.Snapshot) {
	for _, e := range c.state.list() {
		h := e.handler
		c.invoke(ctx, "state", e.key, func() error { return h(ctx, snap) })
	}
}

func (c *Channel) dispatchMessage(ctx context.Context, msg model.AssistantMessage) {
	for _, e := range c.message.list() {
		h := e.handler
		c.invoke(ctx, "message", e.key, func() error { return h(ctx, msg) })
	}
}

// invoke is the fault boundary around handler code. Errors and panics are
// logged and never reach the loop.
func (c *Channel) invoke(ctx context.Context, kind, key string, fn func() error) {
	if c.closed.Load() {
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = goerr.New(fmt.Sprintf("handler panicked: %v", r))
			}
		}()
		return fn()
	}()

	if err != nil {
		wrapped := goerr.Wrap(err, "channel handler failed",
			goerr.T(model.ErrTagChannelRenderFault),
			goerr.V("kind", kind),
			goerr.V("key", key))
		logging.From(ctx).Error("render fault", "error", wrapped)
	}
}

// Name returns the agent name the channel is bound to
func (c *Channel) Name() string { return c.name }

// ThreadID returns the conversation identifier
func (c *Channel) ThreadID() model.ThreadID { return c.threadID }

// State returns the latest snapshot
func (c *Channel) State() model.Snapshot {
	cur := c.snapshot.Load()
	return model.Snapshot{Version: cur.Version, State: cur.State.Clone()}
}

// SetState replaces the shared state and sends it to the agent. The last
// writer wins: a remote update racing with this call may overwrite it, and
// no reconciliation is attempted.
func (c *Channel) SetState(ctx context.Context, next model.AgentState) (model.Snapshot, error) {
	if c.closed.Load() {
		return model.Snapshot{}, ErrClosed
	}

	req := localUpdate{
		patch:   model.PatchFrom(next),
		applied: make(chan model.Snapshot, 1),
	}

	select {
	case c.local <- req:
	case <-c.done:
		return model.Snapshot{}, ErrClosed
	case <-ctx.Done():
		return model.Snapshot{}, goerr.Wrap(ctx.Err(), "state update cancelled")
	}
	snap := <-req.applied

	if err := c.conn.Write(ctx, &model.ClientMessage{
		Type:     model.ClientMessageState,
		ThreadID: c.threadID,
		State:    &snap.State,
	}); err != nil {
		return snap, goerr.Wrap(err, "failed to propagate state", goerr.V("version", snap.Version))
	}
	return snap, nil
}

// Send posts a user message to the agent
func (c *Channel) Send(ctx context.Context, text string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if err := c.conn.Write(ctx, &model.ClientMessage{
		Type:     model.ClientMessageText,
		ThreadID: c.threadID,
		Content:  text,
	}); err != nil {
		return goerr.Wrap(err, "failed to send message")
	}
	return nil
}

// OnProgress subscribes h under key. Registering the same key again replaces
// the previous handler. The returned function unsubscribes.
func (c *Channel) OnProgress(key string, h ProgressHandler) func() {
	return c.progress.set(key, h)
}

// OnState subscribes h to every new snapshot under key
func (c *Channel) OnState(key string, h StateHandler) func() {
	return c.state.set(key, h)
}

// OnMessage subscribes h to assistant replies under key
func (c *Channel) OnMessage(key string, h MessageHandler) func() {
	return c.message.set(key, h)
}

// Done is closed once the channel stops, by Close or by the remote side
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err returns the reason the channel stopped, or nil after a clean shutdown
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close stops the channel. No handler is invoked after Close returns.
func (c *Channel) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		if err := c.conn.Close(); err != nil && !errors.Is(err, context.Canceled) {
			closeErr = goerr.Wrap(err, "failed to close agent connection")
		}
		<-c.done
		c.logger.Info("agent channel closed")
	})
	return closeErr
}
