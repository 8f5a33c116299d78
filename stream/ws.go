package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// WebSocketEventConnection adapts a websocket connection to the
// EventConnection interface. Writes are mutex-protected because WebSocket
// does not support concurrent writers.
type WebSocketEventConnection struct {
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewWebSocketEventConnection wraps an established WebSocket connection.
func NewWebSocketEventConnection(conn *websocket.Conn, logger *zap.Logger) *WebSocketEventConnection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketEventConnection{
		conn:   conn,
		logger: logger.With(zap.String("component", "ws_event_connection")),
	}
}

// WriteEvent serializes the event as JSON and sends it as a text message.
func (w *WebSocketEventConnection) WriteEvent(ctx context.Context, event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("connection closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// ReadEvent reads one JSON-encoded Event. Intended for client-side consumers.
func (w *WebSocketEventConnection) ReadEvent(ctx context.Context) (*Event, error) {
	if w.closed {
		return nil, fmt.Errorf("connection closed")
	}

	_, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

// Close closes the underlying connection. Idempotent.
func (w *WebSocketEventConnection) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close(websocket.StatusNormalClosure, "closing")
}

// IsAlive reports whether the connection has not been closed locally.
func (w *WebSocketEventConnection) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// DialEventConnection connects to a boardflow stream endpoint, e.g.
// "ws://localhost:8080/stream".
func DialEventConnection(ctx context.Context, url string, logger *zap.Logger) (*WebSocketEventConnection, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return NewWebSocketEventConnection(conn, logger), nil
}

var _ EventConnection = (*WebSocketEventConnection)(nil)
