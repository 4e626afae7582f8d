package speech

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// scriptedRecognizer synthesizes deterministic transcripts in place of the
// platform capability.
type scriptedRecognizer struct {
	transcript string
	startErr   error
	failWith   error
	// hold keeps the session in flight until released.
	hold     chan struct{}
	starts   int32
	finishWG sync.WaitGroup
}

func (r *scriptedRecognizer) Start(locale string, cb Callbacks) error {
	atomic.AddInt32(&r.starts, 1)
	if r.startErr != nil {
		return r.startErr
	}
	r.finishWG.Add(1)
	go func() {
		defer r.finishWG.Done()
		if r.hold != nil {
			<-r.hold
		}
		if r.failWith != nil {
			cb.OnError(r.failWith)
		} else {
			cb.OnResult(r.transcript)
		}
		cb.OnEnd()
	}()
	return nil
}

type recordingDispatcher struct {
	mu         sync.Mutex
	utterances []string
	notices    []string
}

func (d *recordingDispatcher) SubmitUtterance(text string) {
	d.mu.Lock()
	d.utterances = append(d.utterances, text)
	d.mu.Unlock()
}

func (d *recordingDispatcher) Notify(message string) {
	d.mu.Lock()
	d.notices = append(d.notices, message)
	d.mu.Unlock()
}

func TestCapture_FinalTranscriptForwarded(t *testing.T) {
	rec := &scriptedRecognizer{transcript: "show me the cheeseburger"}
	disp := &recordingDispatcher{}
	c := NewCapture(rec, "", disp)

	c.Begin()
	rec.finishWG.Wait()

	if c.State() != Idle {
		t.Fatalf("expected idle after final result, got %s", c.State())
	}
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.utterances) != 1 || disp.utterances[0] != "show me the cheeseburger" {
		t.Fatalf("unexpected utterances: %v", disp.utterances)
	}
}

func TestCapture_BeginWhileListeningIsNoop(t *testing.T) {
	rec := &scriptedRecognizer{transcript: "hi", hold: make(chan struct{})}
	disp := &recordingDispatcher{}
	c := NewCapture(rec, "en-US", disp)

	c.Begin()
	if c.State() != Listening {
		t.Fatalf("expected listening, got %s", c.State())
	}
	c.Begin() // second start must not spawn another capability session
	c.Begin()
	if got := atomic.LoadInt32(&rec.starts); got != 1 {
		t.Fatalf("expected 1 capability session, got %d", got)
	}
	close(rec.hold)
	rec.finishWG.Wait()
	if c.State() != Idle {
		t.Fatalf("expected idle after session end, got %s", c.State())
	}
}

func TestCapture_UnsupportedNotifies(t *testing.T) {
	rec := &scriptedRecognizer{startErr: ErrUnsupported}
	disp := &recordingDispatcher{}
	c := NewCapture(rec, "en-US", disp)

	c.Begin()
	if c.State() != Idle {
		t.Fatalf("expected idle after unsupported start, got %s", c.State())
	}
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.notices) != 1 {
		t.Fatalf("expected one notification, got %v", disp.notices)
	}
	if len(disp.utterances) != 0 {
		t.Fatalf("no utterance may be sent on failure")
	}
}

func TestCapture_ErrorSendsNothing(t *testing.T) {
	rec := &scriptedRecognizer{failWith: errors.New("no-speech")}
	disp := &recordingDispatcher{}
	c := NewCapture(rec, "en-US", disp)

	c.Begin()
	rec.finishWG.Wait()
	if c.State() != Idle {
		t.Fatalf("expected idle after error, got %s", c.State())
	}
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.utterances) != 0 {
		t.Fatalf("expected no utterances on error, got %v", disp.utterances)
	}
}

func TestCapture_CanRestartAfterTerminalState(t *testing.T) {
	rec := &scriptedRecognizer{transcript: "add fries"}
	disp := &recordingDispatcher{}
	c := NewCapture(rec, "en-US", disp)

	c.Begin()
	rec.finishWG.Wait()
	c.Begin()
	rec.finishWG.Wait()
	if got := atomic.LoadInt32(&rec.starts); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}
}
