package modem

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pccr10001/smsfleet/pkg/logger"
)

func init() {
	logger.InitLogger("error")
}

// fakeTransport is an in-memory modem endpoint. Bytes written by the
// driver are recorded and optionally answered by a scripted respond
// function, as a real modem would.
type fakeTransport struct {
	mu          sync.Mutex
	pending     []byte
	written     []byte
	closed      bool
	readTimeout time.Duration

	// respond maps a written command line to the modem's reply.
	respond func(cmd string) string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{readTimeout: 50 * time.Millisecond}
}

// push injects unsolicited bytes (URCs) as if the modem emitted them.
func (f *fakeTransport) push(data string) {
	f.mu.Lock()
	f.pending = append(f.pending, data...)
	f.mu.Unlock()
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	deadline := time.Now().Add(f.readTimeout)
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return 0, io.EOF
		}
		if len(f.pending) > 0 {
			n := copy(p, f.pending)
			f.pending = f.pending[n:]
			f.mu.Unlock()
			return n, nil
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, io.EOF
	}
	f.written = append(f.written, p...)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		cmd := strings.TrimRight(string(p), "\r\n\x1a")
		if reply := respond(cmd); reply != "" {
			f.push(reply)
		}
	}
	return len(p), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	f.readTimeout = d
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) ResetInputBuffer() error {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) ResetOutputBuffer() error { return nil }

func (f *fakeTransport) writtenString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.written)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer hands out transports per port, building a fresh one for
// every open so pause/resume cycles are observable.
type fakeDialer struct {
	mu    sync.Mutex
	build func(portName string, baud int) (*fakeTransport, error)
	opens []*fakeTransport
}

func (d *fakeDialer) Dial(portName string, baud int) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.build(portName, baud)
	if err != nil {
		return nil, err
	}
	d.opens = append(d.opens, t)
	return t, nil
}

func (d *fakeDialer) opened() []*fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeTransport(nil), d.opens...)
}

// waitFor polls until cond is true or the timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// okModem answers every AT command with OK.
func okModem(cmd string) string {
	if strings.HasPrefix(cmd, "AT") {
		return "\r\nOK\r\n"
	}
	return ""
}
