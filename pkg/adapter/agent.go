package adapter

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// agentReadLimit bounds one inbound frame. State events carry the full log.
const agentReadLimit = 16 << 20

// AgentConn is one live connection to the agent runtime
type AgentConn interface {
	// Read blocks until the next event arrives
	Read(ctx context.Context) (*model.AgentEvent, error)
	// Write sends a message to the agent. Safe for concurrent use.
	Write(ctx context.Context, msg *model.ClientMessage) error
	// Close terminates the connection and unblocks pending reads
	Close() error
}

// AgentDialer opens connections to the agent runtime
type AgentDialer interface {
	Dial(ctx context.Context, endpoint string) (AgentConn, error)
}

type websocketDialer struct {
	header http.Header
	client *http.Client
}

// AgentDialerOption configures the websocket dialer
type AgentDialerOption func(*websocketDialer)

// WithAgentHeader adds a header sent on the handshake request
func WithAgentHeader(key, value string) AgentDialerOption {
	return func(d *websocketDialer) {
		d.header.Add(key, value)
	}
}

// WithAgentHTTPClient replaces the HTTP client used for the handshake
func WithAgentHTTPClient(client *http.Client) AgentDialerOption {
	return func(d *websocketDialer) {
		d.client = client
	}
}

// NewAgentDialer creates a websocket based AgentDialer
func NewAgentDialer(opts ...AgentDialerOption) AgentDialer {
	d := &websocketDialer{
		header: http.Header{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *websocketDialer) Dial(ctx context.Context, endpoint string) (AgentConn, error) {
	conn, resp, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: d.header,
		HTTPClient: d.client,
	})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, goerr.Wrap(err, "failed to dial agent runtime",
			goerr.V("endpoint", endpoint),
			goerr.V("status", status))
	}
	conn.SetReadLimit(agentReadLimit)

	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) Read(ctx context.Context) (*model.AgentEvent, error) {
	var ev model.AgentEvent
	if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
		return nil, goerr.Wrap(err, "failed to read agent event",
			goerr.V("close_status", int(websocket.CloseStatus(err))))
	}
	return &ev, nil
}

func (c *websocketConn) Write(ctx context.Context, msg *model.ClientMessage) error {
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return goerr.Wrap(err, "failed to write agent message", goerr.V("type", msg.Type))
	}
	return nil
}

func (c *websocketConn) Close() error {
	if err := c.conn.Close(websocket.StatusNormalClosure, "channel closed"); err != nil {
		// already closed by either side
		if errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1 {
			return nil
		}
		return goerr.Wrap(err, "failed to close agent connection")
	}
	return nil
}

// IsNormalClosure reports whether err is the remote closing the connection
// cleanly
func IsNormalClosure(err error) bool {
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
