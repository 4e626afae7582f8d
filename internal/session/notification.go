package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is a transient user-facing message.
type Notification struct {
	ID        string
	Message   string
	ExpiresAt time.Time
}

// notifier is a single-slot notification state machine: empty or
// showing(id, expiry). A new notification immediately supersedes the
// current one; each instance keeps an independent dismissal timer, and a
// timer firing for a superseded id is a no-op.
type notifier struct {
	mu     sync.Mutex
	active *Notification
}

func (n *notifier) show(message string, ttl time.Duration) {
	id := uuid.NewString()
	n.mu.Lock()
	n.active = &Notification{
		ID:        id,
		Message:   message,
		ExpiresAt: time.Now().Add(ttl),
	}
	n.mu.Unlock()
	time.AfterFunc(ttl, func() {
		n.mu.Lock()
		if n.active != nil && n.active.ID == id {
			n.active = nil
		}
		n.mu.Unlock()
	})
}

// current returns a copy of the visible notification, if any.
func (n *notifier) current() *Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active == nil {
		return nil
	}
	cp := *n.active
	return &cp
}
