package session

import (
	"github.com/Nuwanga-Wijamuni/voice-order/internal/conn"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/menu"
)

// View is the read-only projection consumed by the presentation layer.
// Every field is a copy; mutating a View never touches session state.
type View struct {
	MenuItems        []menu.Item
	CurrentIndex     int
	Cart             []menu.Item
	CartTotal        float64
	CartRevision     uint64
	ConnectionStatus conn.Status
	Transcript       string
	AIResponse       string
	CartPulse        bool
	Notification     *Notification
}

// Snapshot recomputes the projection from current state. The cart total is
// always derived from the line sequence, never cached independently of it.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	cart := append([]menu.Item(nil), s.cart...)
	v := View{
		MenuItems:        s.catalog.Items(),
		CurrentIndex:     s.index,
		Cart:             cart,
		CartRevision:     s.cartRevision,
		ConnectionStatus: s.status,
		Transcript:       s.transcript,
		AIResponse:       s.response,
		CartPulse:        s.pulse,
	}
	s.mu.Unlock()
	for _, line := range cart {
		v.CartTotal += line.Price
	}
	v.Notification = s.notifier.current()
	return v
}
