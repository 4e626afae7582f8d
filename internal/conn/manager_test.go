package conn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoAgent upgrades incoming connections and serves canned frames.
type echoAgent struct {
	t      *testing.T
	frames []string

	mu    sync.Mutex
	conns []*websocket.Conn
}

func (a *echoAgent) handler(w http.ResponseWriter, r *http.Request) {
	c, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.t.Logf("upgrade: %v", err)
		return
	}
	a.mu.Lock()
	a.conns = append(a.conns, c)
	a.mu.Unlock()
	for _, f := range a.frames {
		if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}
	// Keep the connection open until the client closes it.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestManager_ConnectAndReceiveInOrder(t *testing.T) {
	agent := &echoAgent{t: t, frames: []string{
		`{"type":"carousel_update","data":{"index":2}}`,
		`{"type":"response.text.delta","delta":"Sure, "}`,
		`{"type":"response.text.delta","delta":"adding fries."}`,
		`{"type":"response.text.done"}`,
	}}
	srv := httptest.NewServer(http.HandlerFunc(agent.handler))
	defer srv.Close()

	var statuses []Status
	var mu sync.Mutex
	m := New(Config{URL: wsURL(srv)}, func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close()

	if m.Status() != Connected {
		t.Fatalf("expected connected, got %s", m.Status())
	}
	mu.Lock()
	if len(statuses) < 2 || statuses[0] != Connecting || statuses[1] != Connected {
		t.Fatalf("unexpected status sequence: %v", statuses)
	}
	mu.Unlock()

	want := []string{"carousel_update", "response.text.delta", "response.text.delta", "response.text.done"}
	for i, w := range want {
		select {
		case ev := <-m.Events():
			var got string
			switch e := ev.(type) {
			case protocol.CarouselUpdate:
				got = protocol.TypeCarouselUpdate
				if e.Index != 2 {
					t.Fatalf("unexpected index %d", e.Index)
				}
			case protocol.ResponseDelta:
				got = protocol.TypeResponseDelta
			case protocol.ResponseDone:
				got = protocol.TypeResponseDone
			default:
				t.Fatalf("event %d: unexpected %T", i, ev)
			}
			if got != w {
				t.Fatalf("event %d: got %s want %s", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestManager_SendWhileDisconnectedIsNoop(t *testing.T) {
	m := New(Config{URL: "ws://127.0.0.1:1/ws"}, nil)
	// Must not panic, block, or change any wire-visible state.
	m.Send(protocol.NewTextMessage("hello"))
	if m.Status() != Disconnected {
		t.Fatalf("expected disconnected, got %s", m.Status())
	}
}

func TestManager_DialFailureSetsError(t *testing.T) {
	m := New(Config{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 200 * time.Millisecond}, nil)
	if err := m.Connect(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	if m.Status() != Error {
		t.Fatalf("expected error status, got %s", m.Status())
	}
}

func TestManager_CloseTransitionsToDisconnected(t *testing.T) {
	agent := &echoAgent{t: t}
	srv := httptest.NewServer(http.HandlerFunc(agent.handler))
	defer srv.Close()

	m := New(Config{URL: wsURL(srv)}, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	m.Close()
	if m.Status() != Disconnected {
		t.Fatalf("expected disconnected after close, got %s", m.Status())
	}
	// Events channel drains and closes.
	select {
	case _, ok := <-m.Events():
		if ok {
			t.Fatalf("expected closed events channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("events channel did not close")
	}
	// Send after close stays a no-op.
	m.Send(protocol.NewTextMessage("late"))
}

func TestManager_ReconnectAfterServerDrop(t *testing.T) {
	var mu sync.Mutex
	accepts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepts++
		first := accepts == 1
		mu.Unlock()
		if first {
			// Drop the first connection abruptly to force a reconnect.
			_ = c.Close()
			return
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"carousel_update","data":{"index":1}}`))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := New(Config{URL: wsURL(srv), MaxReconnectAttempts: 5}, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close()

	select {
	case ev := <-m.Events():
		if cu, ok := ev.(protocol.CarouselUpdate); !ok || cu.Index != 1 {
			t.Fatalf("unexpected event after reconnect: %#v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event after reconnect")
	}
	mu.Lock()
	if accepts < 2 {
		t.Fatalf("expected a second connection, got %d", accepts)
	}
	mu.Unlock()
}

func TestManager_ReconnectExhaustionIsTerminal(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		first := requests == 1
		mu.Unlock()
		if !first {
			// The agent is gone: refuse every reconnect handshake.
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		c, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Close()
	}))
	defer srv.Close()

	m := New(Config{URL: wsURL(srv), MaxReconnectAttempts: 2}, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Backoff runs 500ms + 1s before giving up.
	select {
	case _, ok := <-m.Events():
		if ok {
			t.Fatalf("expected closed events channel after exhaustion")
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("events channel did not close after reconnect exhaustion")
	}
	mu.Lock()
	if requests != 3 {
		t.Fatalf("expected 1 dial + 2 bounded retries, got %d handshakes", requests)
	}
	mu.Unlock()
	if m.Status() != Error {
		t.Fatalf("expected error status, got %s", m.Status())
	}
}

func TestManager_ConnectAfterPumpExitFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop immediately; with reconnection disabled the pump exits.
		_ = c.Close()
	}))
	defer srv.Close()

	m := New(Config{URL: wsURL(srv)}, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	select {
	case _, ok := <-m.Events():
		if ok {
			t.Fatalf("expected closed events channel after drop")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("events channel did not close")
	}

	// The manager is single-lifecycle: a second Connect must refuse to
	// start a new pump over the closed events channel.
	if err := m.Connect(context.Background()); err == nil {
		t.Fatalf("expected error from Connect after the pump terminated")
	}
}
