package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/boardflow/deliberation"
)

// wsEchoServer upgrades to WebSocket and echoes every message back.
func wsEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTestConn(t *testing.T, srv *httptest.Server) *WebSocketEventConnection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := DialEventConnection(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketEventConnection_RoundTrip(t *testing.T) {
	srv := wsEchoServer(t)
	ws := dialTestConn(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := Event{
		Type:      EventRoundSealed,
		SessionID: "sess-1",
		Round: &deliberation.RoundRecord{
			Index: 2,
			Kind:  deliberation.KindDiscussion,
			Positions: []deliberation.ParticipantPosition{
				{ParticipantID: "a", Support: 0.6, Concerns: []string{"budget"}},
			},
			Metric: deliberation.ConsensusMetric{Score: 0.8, Band: deliberation.BandStrong},
		},
		EmittedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, ws.WriteEvent(ctx, sent))

	received, err := ws.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventRoundSealed, received.Type)
	require.NotNil(t, received.Round)
	assert.Equal(t, 2, received.Round.Index)
	assert.Equal(t, 0.8, received.Round.Metric.Score)
	assert.Equal(t, []string{"budget"}, received.Round.Positions[0].Concerns)
}

func TestWebSocketEventConnection_CloseSemantics(t *testing.T) {
	srv := wsEchoServer(t)
	ws := dialTestConn(t, srv)

	assert.True(t, ws.IsAlive())
	require.NoError(t, ws.Close())
	assert.False(t, ws.IsAlive())

	// Idempotent close.
	assert.NoError(t, ws.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ws.WriteEvent(ctx, Event{Type: EventRoundSealed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
}

func TestWebSocketEventConnection_ConcurrentWrites(t *testing.T) {
	srv := wsEchoServer(t)
	ws := dialTestConn(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(index int) {
			defer wg.Done()
			event := Event{
				Type:  EventRoundSealed,
				Round: &deliberation.RoundRecord{Index: index},
			}
			_ = ws.WriteEvent(ctx, event)
		}(i)
	}
	wg.Wait()
}

func TestDialEventConnection_InvalidURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialEventConnection(ctx, "ws://localhost:1", nil)
	assert.Error(t, err)
	assert.Nil(t, conn)
}

func TestWebSocketEventConnection_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		_ = conn.Write(r.Context(), websocket.MessageText, []byte("not-json"))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, err := DialEventConnection(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_, err = ws.ReadEvent(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal event")
}
