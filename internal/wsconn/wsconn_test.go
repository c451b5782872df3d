package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// newWSServer starts a test server that runs handler for every accepted connection.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := DefaultConfig(url, "test")
	cfg.PingInterval = 0

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(DefaultConfig("", "empty")); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClient_Connect(t *testing.T) {
	srv := newWSServer(t, drain)

	tests := []struct {
		name      string
		url       string
		wantErr   bool
		wantState State
	}{
		{name: "reachable server", url: wsURL(srv), wantState: StateConnected},
		{name: "closed port", url: "ws://127.0.0.1:1", wantErr: true, wantState: StateDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.url)

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			err := client.Connect(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Connect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := client.State(); got != tt.wantState {
				t.Errorf("State() = %v, want %v", got, tt.wantState)
			}
			if client.IsConnected() != (tt.wantState == StateConnected) {
				t.Errorf("IsConnected() disagrees with State()")
			}
		})
	}
}

func TestClient_SendJSON(t *testing.T) {
	got := make(chan []byte, 1)
	srv := newWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err == nil {
			got <- data
		}
	})

	client := newTestClient(t, wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	req := map[string]any{"jsonrpc": "2.0", "method": "eth_subscribe", "params": []string{"newFlashblocks"}, "id": 1}
	if err := client.SendJSON(ctx, req); err != nil {
		t.Fatalf("SendJSON: %v", err)
	}

	select {
	case data := <-got:
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("server received invalid json %q: %v", data, err)
		}
		if parsed["method"] != "eth_subscribe" {
			t.Errorf("method = %v", parsed["method"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	client := newTestClient(t, "ws://127.0.0.1:1")
	if err := client.Send(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected send error without a connection")
	}
}

func TestClient_OnMessageReceivesEcho(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	})

	client := newTestClient(t, wsURL(srv))

	received := make(chan []byte, 1)
	client.OnMessage(func(_ context.Context, msg []byte) {
		received <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	payload := []byte(`{"payload_id":"0x01","index":0}`)
	if err := client.Send(ctx, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != string(payload) {
			t.Errorf("got %s, want %s", msg, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for echo")
	}
}

func TestClient_StateTransitions(t *testing.T) {
	srv := newWSServer(t, drain)
	client := newTestClient(t, wsURL(srv))

	var mu sync.Mutex
	var states []State
	client.OnStateChange(func(s State, _ error) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client.Close()

	mu.Lock()
	defer mu.Unlock()

	want := []State{StateConnecting, StateConnected, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	srv := newWSServer(t, drain)
	client := newTestClient(t, wsURL(srv))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("State() = %v, want %v", client.State(), StateClosed)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := client.Connect(ctx); err == nil {
		t.Error("Connect after Close should fail")
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var count atomic.Int32
	srv := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
			count.Add(1)
		}
	})

	client := newTestClient(t, wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	const senders, perSender = 8, 6
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if err := client.SendJSON(ctx, map[string]int{"sender": id, "seq": j}); err != nil {
					t.Errorf("SendJSON: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < senders*perSender && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := count.Load(); got != senders*perSender {
		t.Errorf("server received %d messages, want %d", got, senders*perSender)
	}
}

func TestClient_OversizedMessageDropsConnection(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		big := []byte(strings.Repeat("A", 64*1024))
		_ = conn.Write(context.Background(), websocket.MessageText, big)
		time.Sleep(200 * time.Millisecond)
	})

	cfg := DefaultConfig(wsURL(srv), "test")
	cfg.PingInterval = 0
	cfg.MaxMessageSize = 128
	cfg.InitialBackoff = 5 * time.Second

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if client.State() != StateReconnecting {
		t.Errorf("State() = %v, want %v after oversized frame", client.State(), StateReconnecting)
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var accepted atomic.Int32
	srv := newWSServer(t, func(conn *websocket.Conn) {
		if accepted.Add(1) == 1 {
			return // drop the first connection immediately
		}
		drain(conn)
	})

	cfg := DefaultConfig(wsURL(srv), "test")
	cfg.PingInterval = 0
	cfg.InitialBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 40 * time.Millisecond

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	var connects atomic.Int32
	client.OnStateChange(func(s State, _ error) {
		if s == StateConnected {
			connects.Add(1)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.Reconnects() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if client.Reconnects() != 1 {
		t.Fatalf("Reconnects() = %d, want 1", client.Reconnects())
	}
	if !client.IsConnected() {
		t.Errorf("State() = %v, want connected", client.State())
	}
	if connects.Load() != 2 {
		t.Errorf("connected transitions = %d, want 2", connects.Load())
	}
}

func TestClient_ConnectWithRetryHonoursContext(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1", "test")
	cfg.PingInterval = 0
	cfg.InitialBackoff = 10 * time.Millisecond

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := client.ConnectWithRetry(ctx); err == nil {
		t.Fatal("expected ConnectWithRetry to give up when the context ends")
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		cur, max, want time.Duration
	}{
		{time.Second, 30 * time.Second, 2 * time.Second},
		{20 * time.Second, 30 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := nextBackoff(tt.cur, tt.max); got != tt.want {
			t.Errorf("nextBackoff(%v, %v) = %v, want %v", tt.cur, tt.max, got, tt.want)
		}
	}
}
