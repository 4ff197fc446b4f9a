package notify

import (
	"sync"
	"time"

	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/utils/clock"
)

// DisplayWindow is how long a confirmation stays visible
const DisplayWindow = 5 * time.Second

// Toast is a transient confirmation showing the explorer link of the last
// published transaction. A new transaction replaces the current one and
// restarts the window.
type Toast struct {
	clock  clock.Clock
	window time.Duration
	onHide func(txHash string)

	mu      sync.Mutex
	txHash  string
	visible bool
	timer   clock.Timer
	gen     uint64
	closed  bool
}

// Option is a functional option for Toast
type Option func(*Toast)

// WithClock replaces the real clock
func WithClock(c clock.Clock) Option {
	return func(t *Toast) { t.clock = c }
}

// WithOnHide is called when the toast hides itself at the end of the window
func WithOnHide(f func(txHash string)) Option {
	return func(t *Toast) { t.onHide = f }
}

func New(opts ...Option) *Toast {
	t := &Toast{
		clock:  clock.Real(),
		window: DisplayWindow,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show makes the toast visible for txHash and restarts the hide timer
func (t *Toast) Show(txHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}

	t.gen++
	gen := t.gen
	t.txHash = txHash
	t.visible = true
	t.timer = t.clock.AfterFunc(t.window, func() { t.hide(gen) })
}

// hide runs when the window of generation gen elapses. A timer that fired
// while being replaced carries an old generation and is ignored.
func (t *Toast) hide(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.visible = false
	t.timer = nil
	txHash := t.txHash
	onHide := t.onHide
	t.mu.Unlock()

	if onHide != nil {
		onHide(txHash)
	}
}

// Visible reports whether the toast is showing
func (t *Toast) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Link returns the explorer link of the shown transaction, or an empty string
// when hidden
func (t *Toast) Link() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.visible {
		return ""
	}
	return model.ExplorerTxURL(t.txHash)
}

// Close hides the toast and cancels the pending timer
func (t *Toast) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.visible = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
