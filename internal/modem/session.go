package modem

import (
	"context"
	"sync"
)

// Listener is the pause/resume surface a port listener exposes to the
// arbiter. Pausing closes the OS handle so another owner can open the
// port; resuming reopens and re-initializes it.
type Listener interface {
	PauseListening(portName string) bool
	ResumeListening(ctx context.Context, portName string) bool
}

// PortArbiter coordinates the listener, the send transaction and the
// hangup writes on a port. It owns the per-port command mutex and
// brokers listener pause/resume for the sender. The scanner opens
// ports directly and does not go through the arbiter, so a scan probe
// is not serialized against these.
type PortArbiter struct {
	mu       sync.Mutex
	listener Listener
	locks    map[string]*sync.Mutex
}

func NewPortArbiter() *PortArbiter {
	return &PortArbiter{locks: make(map[string]*sync.Mutex)}
}

// SetListener installs the receiver as the pause/resume target.
// Idempotent; the last listener wins.
func (a *PortArbiter) SetListener(l Listener) {
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()
}

// CommandLock returns the mutex serializing writes on one port. The
// receiver's CMGR/CMGD dialogs and the auto-hangup writes share it.
func (a *PortArbiter) CommandLock(portName string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.locks[portName]
	if !ok {
		m = &sync.Mutex{}
		a.locks[portName] = m
	}
	return m
}

// PauseToken records a successful pause so the matching resume cannot
// be forgotten or doubled.
type PauseToken struct {
	arbiter  *PortArbiter
	portName string
	paused   bool
	once     sync.Once
}

// Pause asks the active listener to release the port. The returned
// token resumes it; Resume is safe to call unconditionally (it is a
// no-op when the listener was not running).
func (a *PortArbiter) Pause(portName string) *PauseToken {
	a.mu.Lock()
	l := a.listener
	a.mu.Unlock()

	t := &PauseToken{arbiter: a, portName: portName}
	if l != nil {
		t.paused = l.PauseListening(portName)
	}
	return t
}

func (t *PauseToken) Paused() bool { return t.paused }

func (t *PauseToken) Resume(ctx context.Context) {
	t.once.Do(func() {
		if !t.paused {
			return
		}
		t.arbiter.mu.Lock()
		l := t.arbiter.listener
		t.arbiter.mu.Unlock()
		if l != nil {
			l.ResumeListening(ctx, t.portName)
		}
	})
}

// WithExclusiveAccess pauses the listener on portName, runs action and
// resumes on every exit path.
func (a *PortArbiter) WithExclusiveAccess(ctx context.Context, portName string, action func(paused bool) error) error {
	token := a.Pause(portName)
	defer token.Resume(ctx)
	return action(token.Paused())
}
