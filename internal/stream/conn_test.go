package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.PingInterval = time.Hour // keep keepalive out of the way
	cfg.StaleTimeout = time.Hour
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 50 * time.Millisecond
	return cfg
}

// readSubscribe reads frames until it sees a subscription frame,
// skipping PINGs.
func readSubscribe(t *testing.T, conn *websocket.Conn) subscribeFrame {
	t.Helper()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("server read failed: %v", err)
		}
		if string(msg) == "PING" {
			conn.WriteMessage(websocket.TextMessage, []byte("PONG"))
			continue
		}
		var frame subscribeFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			t.Fatalf("unexpected frame %q: %v", msg, err)
		}
		return frame
	}
}

func TestConn_SubscribeSendsFullSetOnConnect(t *testing.T) {
	frames := make(chan subscribeFrame, 4)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		frames <- readSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewConn(testConfig(wsURL(server)), nil)
	if err := c.Subscribe("token-a", "token-b"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	select {
	case frame := <-frames:
		if frame.Type != "market" {
			t.Errorf("frame type = %q, want market", frame.Type)
		}
		if len(frame.AssetIDs) != 2 {
			t.Fatalf("expected 2 asset IDs, got %v", frame.AssetIDs)
		}
		if frame.AssetIDs[0] != "token-a" || frame.AssetIDs[1] != "token-b" {
			t.Errorf("asset IDs = %v, want [token-a token-b]", frame.AssetIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe frame")
	}
}

func TestConn_MutationResendsFullSet(t *testing.T) {
	frames := make(chan subscribeFrame, 4)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "PING" {
				continue
			}
			var frame subscribeFrame
			if json.Unmarshal(msg, &frame) == nil {
				frames <- frame
			}
		}
	})
	defer server.Close()

	c := NewConn(testConfig(wsURL(server)), nil)
	c.Subscribe("token-a")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	// Initial frame on connect.
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial frame")
	}

	// Wait until the manage loop reports subscribed so the mutation
	// goes out over the live connection.
	waitState(t, c, StateSubscribed)

	if err := c.Subscribe("token-b"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	select {
	case frame := <-frames:
		if len(frame.AssetIDs) != 2 {
			t.Fatalf("expected full set of 2, got %v", frame.AssetIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resent set")
	}

	if err := c.Unsubscribe("token-a"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	select {
	case frame := <-frames:
		if len(frame.AssetIDs) != 1 || frame.AssetIDs[0] != "token-b" {
			t.Fatalf("expected [token-b], got %v", frame.AssetIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for shrunk set")
	}
}

func TestConn_DeliversTrades(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event_type": "last_trade_price",
			"asset_id": "token-a",
			"market": "0xabc",
			"price": "0.55",
			"size": "40",
			"side": "SELL",
			"timestamp": "1756600000000"
		}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewConn(testConfig(wsURL(server)), nil)
	c.Subscribe("token-a")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	select {
	case ev := <-c.Events():
		trade, ok := ev.(TradeEvent)
		if !ok {
			t.Fatalf("expected TradeEvent, got %T", ev)
		}
		if trade.AssetID != "token-a" {
			t.Errorf("AssetID = %q, want token-a", trade.AssetID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade event")
	}

	stats := c.Stats()
	if stats.EventsDelivered != 1 {
		t.Errorf("EventsDelivered = %d, want 1", stats.EventsDelivered)
	}
}

func TestConn_ReconnectResubscribesFullSet(t *testing.T) {
	frames := make(chan subscribeFrame, 4)
	var connections atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := connections.Add(1)

		frames <- readSubscribe(t, conn)
		if n == 1 {
			// Drop the first connection right after the subscribe.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewConn(testConfig(wsURL(server)), nil)
	c.Subscribe("token-a", "token-b")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	// First connection subscribes and gets dropped.
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first subscribe")
	}

	// Second connection must carry the full set again.
	select {
	case frame := <-frames:
		if len(frame.AssetIDs) != 2 {
			t.Fatalf("resubscribe set = %v, want both tokens", frame.AssetIDs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for resubscribe")
	}

	waitState(t, c, StateSubscribed)
	if got := c.Stats().Reconnects; got < 1 {
		t.Errorf("Reconnects = %d, want >= 1", got)
	}
}

func TestConn_ShutdownClosesEvents(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewConn(testConfig(wsURL(server)), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitState(t, c, StateSubscribed)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("expected events channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("events channel not closed after shutdown")
	}

	if err := c.Shutdown(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("second Shutdown = %v, want ErrAlreadyClosed", err)
	}
}

func TestConn_SubscribeDuringConnectNotLost(t *testing.T) {
	var mu sync.Mutex
	var lastSet []string

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "PING" {
				continue
			}
			var frame subscribeFrame
			if json.Unmarshal(msg, &frame) == nil {
				mu.Lock()
				lastSet = frame.AssetIDs
				mu.Unlock()
			}
		}
	})
	defer server.Close()

	c := NewConn(testConfig(wsURL(server)), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	// Race subscriptions against the connect handshake. Every token
	// must reach the wire, either via the connect frame or a push of
	// its own; none may stay recorded-but-unsent until a reconnect.
	const tokens = 50
	for i := 0; i < tokens; i++ {
		if err := c.Subscribe(fmt.Sprintf("token-%03d", i)); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(lastSet)
		mu.Unlock()
		if n == tokens {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("server last saw %d of %d tracked tokens", len(lastSet), tokens)
}

func TestConn_SubscriptionsSorted(t *testing.T) {
	c := NewConn(DefaultConfig(), nil)
	c.Subscribe("zeta", "alpha", "mid")
	c.Subscribe("alpha") // duplicate, no-op

	got := c.Subscriptions()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Subscriptions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Subscriptions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func waitState(t *testing.T, c Conn, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s (now %s)", want, c.State())
}
