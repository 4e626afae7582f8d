// Package conn owns the persistent websocket connection to the ordering
// agent: the status state machine, outbound sends, and the inbound read
// pump that delivers decoded events in arrival order.
package conn

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/protocol"
)

// Status is the connection lifecycle state.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Error
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Config configures a Manager.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the voice ordering agent.
	URL string
	// Header carries optional handshake headers (e.g. auth).
	Header http.Header
	// HandshakeTimeout bounds the dial. Defaults to 10s.
	HandshakeTimeout time.Duration
	// MaxReconnectAttempts enables bounded exponential-backoff reconnection
	// after a transport failure. Zero keeps the faithful single-connection
	// behavior: the session stays down until an external trigger reconnects.
	MaxReconnectAttempts int
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	reconnectBaseDelay      = 500 * time.Millisecond
	reconnectMaxDelay       = 8 * time.Second
)

// Manager maintains one persistent connection for the session lifetime.
//
// Send is best-effort: when the status is anything but Connected the message
// is dropped, not queued. Transport failures are surfaced only through the
// status callback and Status(), never as errors from Send.
type Manager struct {
	cfg      Config
	onStatus func(Status)

	mu         sync.RWMutex
	conn       *websocket.Conn
	status     Status
	pumpActive bool
	terminated bool

	writeMu sync.Mutex

	events    chan protocol.Event
	stopCh    chan struct{}
	closeOnce sync.Once
}

// New constructs a Manager. onStatus (optional) observes every status
// transition; it is invoked from connection goroutines and must not block.
func New(cfg Config, onStatus func(Status)) *Manager {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Manager{
		cfg:      cfg,
		onStatus: onStatus,
		status:   Disconnected,
		events:   make(chan protocol.Event, 64),
		stopCh:   make(chan struct{}),
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Events yields inbound envelopes decoded into typed events, one at a time
// in arrival order. The channel closes when the connection is permanently
// down (after Close, or after reconnect attempts are exhausted).
func (m *Manager) Events() <-chan protocol.Event { return m.events }

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	m.mu.Unlock()
	if changed && m.onStatus != nil {
		m.onStatus(s)
	}
}

// Connect opens the persistent connection and starts the read pump.
// Calling it while already connected is a no-op. A Manager is
// single-lifecycle: once closed, or once the pump has terminated (the
// events channel is closed), Connect returns an error and the caller must
// build a new Manager to reconnect.
func (m *Manager) Connect(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return fmt.Errorf("connection manager is closed")
	default:
	}
	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return fmt.Errorf("connection permanently down")
	}
	// An active pump owns the connection, including any in-flight backoff
	// reconnection; a second pump must never start.
	if m.pumpActive || m.status == Connected || m.status == Connecting {
		m.mu.Unlock()
		return nil
	}
	m.pumpActive = true
	m.mu.Unlock()

	if err := m.dial(ctx); err != nil {
		m.mu.Lock()
		m.pumpActive = false
		m.mu.Unlock()
		return err
	}
	go m.readPump()
	return nil
}

func (m *Manager) dial(ctx context.Context) error {
	m.setStatus(Connecting)
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	c, resp, err := dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if err != nil {
		if resp != nil {
			log.Printf("conn: dial %s failed with status %d: %v", m.cfg.URL, resp.StatusCode, err)
		} else {
			log.Printf("conn: dial %s failed: %v", m.cfg.URL, err)
		}
		m.setStatus(Error)
		return fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}
	m.mu.Lock()
	m.conn = c
	m.mu.Unlock()
	m.setStatus(Connected)
	return nil
}

// Send transmits v as a JSON text frame if and only if the status is
// Connected; otherwise the message is silently dropped. A write failure
// marks the connection errored and is likewise not returned to the caller:
// callers observe transport trouble via status, not via Send.
func (m *Manager) Send(v any) {
	m.mu.RLock()
	c := m.conn
	connected := m.status == Connected
	m.mu.RUnlock()
	if !connected || c == nil {
		return
	}
	m.writeMu.Lock()
	err := c.WriteJSON(v)
	m.writeMu.Unlock()
	if err != nil {
		log.Printf("conn: write failed: %v", err)
		m.setStatus(Error)
	}
}

// readPump reads frames until the connection drops. On a transport failure
// it runs bounded backoff reconnection when configured; otherwise it closes
// the events channel and exits.
func (m *Manager) readPump() {
	// Mark terminal before closing so a racing Connect cannot start a
	// second pump that would send on, or re-close, the closed channel.
	defer func() {
		m.mu.Lock()
		m.terminated = true
		m.pumpActive = false
		m.mu.Unlock()
		close(m.events)
	}()
	for {
		m.mu.RLock()
		c := m.conn
		m.mu.RUnlock()
		if c == nil {
			return
		}
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				select {
				case <-m.stopCh:
					// Closed locally; Close already set the final status.
					return
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					m.setStatus(Disconnected)
				} else {
					log.Printf("conn: read failed: %v", err)
					m.setStatus(Error)
				}
				break
			}
			ev := protocol.Decode(data)
			select {
			case m.events <- ev:
			case <-m.stopCh:
				return
			}
		}
		if !m.reconnect() {
			return
		}
	}
}

// reconnect retries the dial with exponential backoff, bounded by
// MaxReconnectAttempts. Returns true when a new connection is live.
func (m *Manager) reconnect() bool {
	if m.cfg.MaxReconnectAttempts <= 0 {
		return false
	}
	delay := reconnectBaseDelay
	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-m.stopCh:
			return false
		case <-time.After(delay):
		}
		log.Printf("conn: reconnect attempt %d/%d", attempt, m.cfg.MaxReconnectAttempts)
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
		err := m.dial(ctx)
		cancel()
		if err == nil {
			return true
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
	log.Printf("conn: reconnect attempts exhausted")
	return false
}

// Close tears the connection down. Subsequent Sends are dropped and the
// events channel closes once the pump exits.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.mu.Lock()
		c := m.conn
		m.conn = nil
		m.mu.Unlock()
		if c != nil {
			m.writeMu.Lock()
			_ = c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(2*time.Second))
			m.writeMu.Unlock()
			_ = c.Close()
		}
		m.setStatus(Disconnected)
	})
}
