package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGateway creates a test WebSocket server.
func mockGateway(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.ReconnectBaseDelay = 20 * time.Millisecond
	cfg.ReconnectMaxDelay = 100 * time.Millisecond
	cfg.MaxReconnectAttempts = 3
	return cfg
}

// waitForState polls until the transport reaches the wanted state.
func waitForState(t *testing.T, tr Transport, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if tr.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transport never reached %s, still %s", want, tr.State())
}

func TestClient_ConnectAndSend(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockGateway(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	tr := NewClient(testConfig(wsURL(server)), nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	waitForState(t, tr, StateConnected, 2*time.Second)
	assert.Equal(t, 0, tr.ReconnectAttempt())

	err := tr.Send(map[string]any{"type": "game_move", "request_id": "r1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(string(received), "game_move")
	}, time.Second, 10*time.Millisecond)
}

func TestClient_MessagesParsed(t *testing.T) {
	server := mockGateway(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"balance","balance":"1500"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"game_result","delta":"-100"}`))
		// Keep the connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewClient(testConfig(wsURL(server)), nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	var types []string
	timeout := time.After(2 * time.Second)
	for len(types) < 2 {
		select {
		case msg := <-tr.Messages():
			types = append(types, msg.Type)
			assert.False(t, msg.ReceivedAt.IsZero())
		case <-timeout:
			t.Fatalf("timed out, got %v", types)
		}
	}

	// The unparseable frame is dropped, not delivered.
	assert.Equal(t, []string{"balance", "game_result"}, types)
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/ws")
	tr := NewClient(cfg, nil)

	err := tr.Send(map[string]string{"type": "game_move"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_FailedAfterRetryBudget(t *testing.T) {
	// Nothing listens here; every dial fails fast.
	cfg := testConfig("ws://127.0.0.1:1/ws")
	cfg.HandshakeTimeout = 200 * time.Millisecond

	tr := NewClient(cfg, nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	waitForState(t, tr, StateFailed, 5*time.Second)

	// Failed is terminal: no retry is scheduled.
	_, pending := tr.NextRetryAt()
	assert.False(t, pending)

	// State stays failed without manual action.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, StateFailed, tr.State())
}

func TestClient_ReconnectRecoversFromFailed(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/ws")
	cfg.HandshakeTimeout = 200 * time.Millisecond

	tr := NewClient(cfg, nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	waitForState(t, tr, StateFailed, 5*time.Second)

	// Bring a real gateway up and repoint the client.
	server := mockGateway(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr.(*client).cfg.URL = wsURL(server)
	tr.Reconnect()

	waitForState(t, tr, StateConnected, 2*time.Second)
	assert.Equal(t, 0, tr.ReconnectAttempt())
}

func TestClient_ReconnectBeforeDialDoesNotDropFreshConnection(t *testing.T) {
	var dials atomic.Int32
	server := mockGateway(t, func(conn *websocket.Conn) {
		dials.Add(1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewClient(testConfig(wsURL(server)), nil)

	// A reconnect command issued while no dial has completed yet must be
	// satisfied by the connection that dial produces, not tear it down.
	tr.Reconnect()
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	waitForState(t, tr, StateConnected, 2*time.Second)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateConnected, tr.State())
	assert.Equal(t, int32(1), dials.Load(), "the established connection must not be redialed")
}

func TestClient_DisconnectSuspendsRetries(t *testing.T) {
	server := mockGateway(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewClient(testConfig(wsURL(server)), nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	waitForState(t, tr, StateConnected, 2*time.Second)

	tr.Disconnect()
	waitForState(t, tr, StateDisconnected, 2*time.Second)

	// No automatic reconnect while manually disconnected.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, StateDisconnected, tr.State())
	assert.Equal(t, 0, tr.ReconnectAttempt())

	tr.Reconnect()
	waitForState(t, tr, StateConnected, 2*time.Second)
}

func TestClient_RetrySchedulesNextRetryAt(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/ws")
	cfg.HandshakeTimeout = 200 * time.Millisecond
	cfg.ReconnectBaseDelay = 500 * time.Millisecond
	cfg.ReconnectMaxDelay = 2 * time.Second
	cfg.MaxReconnectAttempts = 5

	tr := NewClient(cfg, nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	require.Eventually(t, func() bool {
		_, ok := tr.NextRetryAt()
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	target, ok := tr.NextRetryAt()
	require.True(t, ok)
	assert.True(t, target.After(time.Now().Add(-50*time.Millisecond)))
	assert.Greater(t, tr.ReconnectAttempt(), 0)
}

func TestClient_StateChangeEvents(t *testing.T) {
	server := mockGateway(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewClient(testConfig(wsURL(server)), nil)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	var seen []State
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-tr.StateChanges():
			seen = append(seen, ev.New)
			if ev.New == StateConnected {
				assert.Equal(t, StateConnecting, ev.Old)
				return
			}
		case <-timeout:
			t.Fatalf("never saw connected, events: %v", seen)
		}
	}
}
