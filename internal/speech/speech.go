// Package speech wraps the platform speech-recognition capability behind a
// small interface and drives a single-shot voice capture state machine.
// The capability itself is an external collaborator: only recognized text
// ever leaves this package, never audio.
package speech

import (
	"errors"
	"log"
	"sync"
)

// ErrUnsupported is returned by Recognizer.Start when the platform has no
// speech-recognition capability.
var ErrUnsupported = errors.New("speech recognition not supported")

// Callbacks receive the outcome of a recognition session. Exactly one of
// OnResult/OnError fires per session, followed by OnEnd. Callbacks may be
// invoked from any goroutine.
type Callbacks struct {
	OnResult func(text string)
	OnError  func(err error)
	OnEnd    func()
}

// Recognizer is the consumed speech capability: single-shot, final results
// only (no interim partial transcripts).
type Recognizer interface {
	Start(locale string, cb Callbacks) error
}

// State is the capture session state.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Dispatcher consumes recognized utterances and user-facing notices.
// *session.Session satisfies it.
type Dispatcher interface {
	SubmitUtterance(text string)
	Notify(message string)
}

// Capture is the voice capture session. At most one recognition runs at a
// time; Begin while listening is a no-op.
type Capture struct {
	rec    Recognizer
	locale string
	disp   Dispatcher

	mu    sync.Mutex
	state State
}

// NewCapture wires a recognizer to a dispatcher. locale defaults to en-US.
func NewCapture(rec Recognizer, locale string, disp Dispatcher) *Capture {
	if locale == "" {
		locale = "en-US"
	}
	return &Capture{rec: rec, locale: locale, disp: disp}
}

// State reports the current capture state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin starts a recognition session. While a session is in flight the call
// is ignored — the prior recognition must reach a terminal state first. An
// unsupported platform raises a user notification; other start failures are
// logged and leave the session idle.
func (c *Capture) Begin() {
	c.mu.Lock()
	if c.state == Listening {
		c.mu.Unlock()
		return
	}
	c.state = Listening
	c.mu.Unlock()

	err := c.rec.Start(c.locale, Callbacks{
		OnResult: c.handleResult,
		OnError:  c.handleError,
		OnEnd:    c.handleEnd,
	})
	if err != nil {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
		if errors.Is(err, ErrUnsupported) {
			c.disp.Notify("Speech recognition not supported on this device.")
			return
		}
		log.Printf("speech: start failed: %v", err)
	}
}

// handleResult surfaces the final transcript and forwards it to the agent.
// The session returns to idle so a new capture may begin.
func (c *Capture) handleResult(text string) {
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
	if text == "" {
		return
	}
	c.disp.SubmitUtterance(text)
}

// handleError logs the capability failure. No partial utterance is ever
// sent on error.
func (c *Capture) handleError(err error) {
	log.Printf("speech: recognition error: %v", err)
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
}

func (c *Capture) handleEnd() {
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
}
