package chat

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"dashtui/config"
)

// TokenSource fetches a short-lived bearer credential for the stream.
// Failure is non-fatal: the transport falls back to an anonymous connection.
type TokenSource func(ctx context.Context) (string, error)

// Transport owns one WebSocket connection to the backend's assistant stream.
// Frames are delivered to a single callback in receipt order; there is no
// reordering, buffering beyond FIFO, or automatic reconnection. Callers
// observe connection state changes and re-invoke Connect themselves.
type Transport struct {
	streamURL string
	area      string
	tokens    TokenSource

	onFrame func(raw []byte)
	onState func(connected bool)

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	connecting bool
	cancel     context.CancelFunc
}

// NewTransport creates a transport for the given ws:// or wss:// stream URL.
// area optionally scopes the assistant's context and is sent as a query
// parameter. tokens may be nil for anonymous connections.
func NewTransport(streamURL, area string, tokens TokenSource) *Transport {
	return &Transport{streamURL: streamURL, area: area, tokens: tokens}
}

// OnFrame registers the frame callback. Exactly one invocation per inbound
// frame, in receipt order. Must be set before Connect.
func (t *Transport) OnFrame(fn func(raw []byte)) {
	t.onFrame = fn
}

// OnStateChange registers a connection state observer. Must be set before
// Connect.
func (t *Transport) OnStateChange(fn func(connected bool)) {
	t.onState = fn
}

// Connected reports whether the connection is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Connect opens the connection. The dial is deferred until the credential
// fetch resolves; a failed fetch degrades to an anonymous connection rather
// than blocking the feature. Calling Connect while connected or while another
// Connect is still in flight is a no-op, so there is never more than one
// socket and one read loop.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected || t.connecting {
		t.mu.Unlock()
		return nil
	}
	t.connecting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.connecting = false
		t.mu.Unlock()
	}()

	var token string
	if t.tokens != nil {
		tok, err := t.tokens(ctx)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[transport] token fetch failed, connecting anonymously: %v", err)
			}
		} else {
			token = tok
		}
	}

	u, err := url.Parse(t.streamURL)
	if err != nil {
		return err
	}
	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	if t.area != "" {
		q.Set("area", t.area)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	readCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.cancel = cancel
	t.mu.Unlock()

	if t.onState != nil {
		t.onState(true)
	}

	go t.readLoop(readCtx, conn)
	return nil
}

// Send serializes v onto the wire. When not connected this is a silent
// no-op; callers that care must check Connected first.
func (t *Transport) Send(v any) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()
	if !connected || conn == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Disconnect releases the connection. Idempotent.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	wasConnected := t.connected
	t.conn = nil
	t.cancel = nil
	t.connected = false
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if wasConnected && t.onState != nil {
		t.onState(false)
	}
}

// readLoop delivers frames one at a time from a single goroutine, which is
// what guarantees FIFO delivery to the callback.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			stillCurrent := t.conn == conn
			if stillCurrent {
				t.conn = nil
				t.connected = false
			}
			t.mu.Unlock()

			if stillCurrent {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[transport] connection closed: %v", err)
				}
				if t.onState != nil {
					t.onState(false)
				}
			}
			return
		}
		if t.onFrame != nil {
			t.onFrame(data)
		}
	}
}
