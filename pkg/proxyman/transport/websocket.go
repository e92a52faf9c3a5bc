package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketClient multiplexes JSON-RPC calls over one WebSocket connection.
// Responses are matched to calls by request id.
type WebSocketClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool
	readErr error
	done    chan struct{}
}

// DialWebSocket connects to a JSON-RPC WebSocket endpoint
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocketClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, &TransportError{Method: url, Op: "dial", Err: err}
	}
	return NewWebSocketClient(conn), nil
}

// NewWebSocketClient wraps an established connection and starts reading
func NewWebSocketClient(conn *websocket.Conn) *WebSocketClient {
	c := &WebSocketClient{
		conn:    conn,
		pending: make(map[string]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends method with named params and waits for the matching response
func (c *WebSocketClient) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	id := uuid.NewString()
	req, err := NewRequest(method, params, id)
	if err != nil {
		return nil, &TransportError{Method: method, Op: "encode", Err: err}
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &TransportError{Method: method, Op: "send", Err: ErrClosed}
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, &TransportError{Method: method, Op: "send", Err: err}
	}

	select {
	case resp := <-ch:
		return resp.result()
	case <-c.done:
		return nil, &TransportError{Method: method, Op: "read", Err: c.closeReason()}
	case <-ctx.Done():
		return nil, &TransportError{Method: method, Op: "wait", Err: ctx.Err()}
	}
}

// Close closes the connection and fails pending calls
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *WebSocketClient) readLoop() {
	defer close(c.done)

	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.mu.Lock()
			c.closed = true
			c.readErr = err
			c.mu.Unlock()
			return
		}

		var id string
		if err := json.Unmarshal(resp.ID, &id); err != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[id]
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *WebSocketClient) closeReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w: %v", ErrClosed, c.readErr)
	}
	return ErrClosed
}
