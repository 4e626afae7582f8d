// Package session holds the canonical client-side ordering state and
// reconciles local optimistic mutations with authoritative pushes from the
// remote agent.
//
// One Session is the single writer for {carousel index, cart}: local user
// actions and the inbound event pump both funnel through its mutex, so
// state changes are serialized regardless of which goroutine they originate
// on. Remote pushes fully overwrite the field they touch; a local edit that
// was not yet reflected server-side is discarded by the next authoritative
// push (last-applied-wins, no merge). CartRevision in the snapshot lets the
// view layer detect such replacements.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/conn"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/menu"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/protocol"
)

// Sender transmits an outbound message on a best-effort basis.
// *conn.Manager satisfies it.
type Sender interface {
	Send(v any)
}

// Timings holds the grace durations for transient state.
type Timings struct {
	// NotificationTTL is how long a notification stays visible.
	NotificationTTL time.Duration
	// ResponseGrace keeps the finished agent response on screen after a
	// response.text.done before the buffer clears.
	ResponseGrace time.Duration
	// CartPulse is the length of the add-to-cart animation signal.
	CartPulse time.Duration
}

// DefaultTimings mirrors the reference behavior: 3s notifications, 3s
// response grace, 600ms cart pulse.
func DefaultTimings() Timings {
	return Timings{
		NotificationTTL: 3 * time.Second,
		ResponseGrace:   3 * time.Second,
		CartPulse:       600 * time.Millisecond,
	}
}

// Session is the authority over the canonical ordering state.
type Session struct {
	catalog *menu.Catalog
	sender  Sender
	timings Timings

	mu           sync.Mutex
	index        int
	cart         []menu.Item
	cartRevision uint64
	status       conn.Status
	transcript   string

	// streaming response buffer; respGen tags the current turn so a grace
	// clear scheduled for an earlier turn is a no-op.
	response    string
	respGen     uint64
	donePending bool

	pulse    bool
	pulseGen uint64

	notifier notifier
}

// New constructs a Session over the given catalog. sender may be nil for a
// purely local (offline) session. The catalog must be loaded before any
// carousel operation; an empty catalog makes them no-ops.
func New(catalog *menu.Catalog, sender Sender, timings Timings) *Session {
	if timings.NotificationTTL <= 0 {
		timings.NotificationTTL = DefaultTimings().NotificationTTL
	}
	if timings.ResponseGrace <= 0 {
		timings.ResponseGrace = DefaultTimings().ResponseGrace
	}
	if timings.CartPulse <= 0 {
		timings.CartPulse = DefaultTimings().CartPulse
	}
	return &Session{
		catalog: catalog,
		sender:  sender,
		timings: timings,
	}
}

// SetStatus records the connection status for the view projection. Wire it
// as the conn.Manager status callback.
func (s *Session) SetStatus(st conn.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Next advances the carousel one position, wrapping at the end.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.catalog.Len(); n > 0 {
		s.index = (s.index + 1) % n
	}
}

// Prev moves the carousel back one position, wrapping at the start.
func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.catalog.Len(); n > 0 {
		s.index = (s.index - 1 + n) % n
	}
}

// JumpTo selects a carousel position directly (e.g. tapping an indicator).
// Out-of-range positions are ignored.
func (s *Session) JumpTo(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < s.catalog.Len() {
		s.index = i
	}
}

// AddToCart appends a line for the item. Duplicates are allowed; every add
// is a new line, never a quantity increment. Raises a notification and the
// transient cart pulse.
func (s *Session) AddToCart(item menu.Item) {
	s.mu.Lock()
	s.cart = append(s.cart, item)
	s.cartRevision++
	s.startPulseLocked()
	s.mu.Unlock()
	s.notifier.show(fmt.Sprintf("%s added to cart!", item.Name), s.timings.NotificationTTL)
}

// RemoveFromCart removes exactly one line at the given ordinal position.
// With duplicate keys only the targeted occurrence is removed. Out-of-range
// positions are ignored.
func (s *Session) RemoveFromCart(pos int) {
	s.mu.Lock()
	if pos < 0 || pos >= len(s.cart) {
		s.mu.Unlock()
		return
	}
	removed := s.cart[pos]
	s.cart = append(s.cart[:pos], s.cart[pos+1:]...)
	s.cartRevision++
	s.mu.Unlock()
	s.notifier.show(fmt.Sprintf("%s removed from cart", removed.Name), s.timings.NotificationTTL)
}

// SubmitUtterance records a recognized utterance as the local transcript
// and forwards it to the agent. Delivery is best-effort: when the
// connection is not up the message is dropped by the sender.
func (s *Session) SubmitUtterance(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	s.transcript = text
	s.mu.Unlock()
	if s.sender != nil {
		s.sender.Send(protocol.NewTextMessage(text))
	}
}

// Notify surfaces a transient user-facing message (used by the voice
// capture session for capability errors).
func (s *Session) Notify(message string) {
	s.notifier.show(message, s.timings.NotificationTTL)
}

// Apply applies one authoritative event from the agent. Unknown events are
// dropped without effect.
func (s *Session) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.CarouselUpdate:
		s.applyCarousel(e.Index)
	case protocol.CartUpdate:
		s.applyCart(e.Cart)
	case protocol.ResponseDelta:
		s.appendResponse(e.Delta)
	case protocol.ResponseDone:
		s.finishResponse()
	default:
		// Forward-compatible: unknown envelope types change nothing.
	}
}

// Run consumes events until the channel closes or ctx is cancelled. Each
// event is fully applied before the next is read.
func (s *Session) Run(ctx context.Context, events <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Apply(ev)
		}
	}
}

// applyCarousel overwrites the carousel position. The index is taken modulo
// the catalog length so the invariant index ∈ [0, len) holds even for
// out-of-range pushes.
func (s *Session) applyCarousel(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.catalog.Len()
	if n == 0 {
		return
	}
	s.index = ((idx % n) + n) % n
}

// applyCart replaces the whole cart. This is a full overwrite, never a
// diff: local lines the agent does not know about are discarded here.
func (s *Session) applyCart(items []menu.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = append([]menu.Item(nil), items...)
	s.cartRevision++
}

func (s *Session) appendResponse(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.donePending {
		// A new turn began while the previous clear was still pending.
		// Start fresh and invalidate the pending clear.
		s.response = ""
		s.donePending = false
		s.respGen++
	}
	s.response += delta
}

// finishResponse schedules the buffer clear after the grace period. The
// clear is tagged with the current turn generation; if a new turn starts in
// the meantime the timer fires as a no-op.
func (s *Session) finishResponse() {
	s.mu.Lock()
	s.donePending = true
	gen := s.respGen
	s.mu.Unlock()
	time.AfterFunc(s.timings.ResponseGrace, func() {
		s.mu.Lock()
		if s.respGen == gen {
			s.response = ""
			s.donePending = false
		}
		s.mu.Unlock()
	})
}

// startPulseLocked raises the cart animation signal and schedules its
// auto-clear. Caller holds s.mu.
func (s *Session) startPulseLocked() {
	s.pulse = true
	s.pulseGen++
	gen := s.pulseGen
	time.AfterFunc(s.timings.CartPulse, func() {
		s.mu.Lock()
		if s.pulseGen == gen {
			s.pulse = false
		}
		s.mu.Unlock()
	})
}
