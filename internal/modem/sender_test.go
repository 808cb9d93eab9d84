package modem

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sendModem scripts a modem through a successful CMGS dialog.
func sendModem(finalReply string) func(cmd string) string {
	return func(cmd string) string {
		switch {
		case strings.HasPrefix(cmd, "AT+CMGS="):
			return "\r\n> "
		case strings.HasPrefix(cmd, "AT+CSCS"), cmd == "AT", cmd == "ATE0", cmd == "AT+CMGF=1":
			return "\r\nOK\r\n"
		case strings.HasPrefix(cmd, "AT"):
			return "\r\nOK\r\n"
		default:
			// The message payload terminated by Ctrl-Z.
			return finalReply
		}
	}
}

func TestSendSmsValidation(t *testing.T) {
	s := NewSender(&fakeDialer{build: func(string, int) (*fakeTransport, error) { return newFakeTransport(), nil }}, NewPortArbiter())
	defer s.Close()

	ok, msg := s.SendSms(context.Background(), "", "+123", "hi")
	require.False(t, ok)
	require.Equal(t, "COM port is required", msg)

	ok, msg = s.SendSms(context.Background(), "COM1", "", "hi")
	require.False(t, ok)
	require.Equal(t, "target number is required", msg)

	ok, msg = s.SendSms(context.Background(), "COM1", "+123", "")
	require.False(t, ok)
	require.Equal(t, "message content is required", msg)
}

func TestSendSmsSuccess(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = sendModem("\r\n+CMGS: 42\r\n\r\nOK\r\n")
	s := NewSender(&fakeDialer{build: func(string, int) (*fakeTransport, error) { return ft, nil }}, NewPortArbiter())
	defer s.Close()

	ok, errMsg := s.SendSms(context.Background(), "COM1", "+15551234567", "hi there")
	require.True(t, ok, errMsg)
	require.Empty(t, errMsg)

	written := ft.writtenString()
	require.Contains(t, written, `AT+CSCS="GSM"`)
	require.Contains(t, written, `AT+CMGS="+15551234567"`)
	require.Contains(t, written, "hi there\x1a")
}

func TestSendSmsUcs2Payload(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = sendModem("\r\n+CMGS: 7\r\n\r\nOK\r\n")
	s := NewSender(&fakeDialer{build: func(string, int) (*fakeTransport, error) { return ft, nil }}, NewPortArbiter())
	defer s.Close()

	ok, errMsg := s.SendSms(context.Background(), "COM1", "+8613800138000", "你好")
	require.True(t, ok, errMsg)

	written := ft.writtenString()
	require.Contains(t, written, `AT+CSCS="UCS2"`)
	// Both address and body travel hex-encoded under UCS2.
	require.Contains(t, written, EncodeUcs2Hex("+8613800138000"))
	require.Contains(t, written, EncodeUcs2Hex("你好")+"\x1a")
}

func TestSendSmsModemError(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(cmd string) string {
		if strings.HasPrefix(cmd, "AT+CMGS=") {
			return "\r\n+CMS ERROR: 500\r\n"
		}
		if strings.HasPrefix(cmd, "AT") {
			return "\r\nOK\r\n"
		}
		return ""
	}
	s := NewSender(&fakeDialer{build: func(string, int) (*fakeTransport, error) { return ft, nil }}, NewPortArbiter())
	defer s.Close()

	ok, errMsg := s.SendSms(context.Background(), "COM1", "+123", "hi")
	require.False(t, ok)
	require.Contains(t, errMsg, "rejected")
}

// recordingListener tracks pause/resume calls for the arbiter.
type recordingListener struct {
	mu      sync.Mutex
	paused  []string
	resumed []string
}

func (l *recordingListener) PauseListening(port string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = append(l.paused, port)
	return true
}

func (l *recordingListener) ResumeListening(_ context.Context, port string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resumed = append(l.resumed, port)
	return true
}

func TestSendSmsPausesAndResumesListener(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = sendModem("\r\n+CMGS: 9\r\n\r\nOK\r\n")
	arbiter := NewPortArbiter()
	listener := &recordingListener{}
	arbiter.SetListener(listener)

	s := NewSender(&fakeDialer{build: func(string, int) (*fakeTransport, error) { return ft, nil }}, arbiter)
	defer s.Close()

	ok, errMsg := s.SendSms(context.Background(), "COM5", "+123", "hi")
	require.True(t, ok, errMsg)
	require.Equal(t, []string{"COM5"}, listener.paused)
	require.Equal(t, []string{"COM5"}, listener.resumed)
}

func TestSendSmsResumesOnFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(cmd string) string {
		if strings.HasPrefix(cmd, "AT+CMGS=") {
			return "\r\nERROR\r\n"
		}
		if strings.HasPrefix(cmd, "AT") {
			return "\r\nOK\r\n"
		}
		return ""
	}
	arbiter := NewPortArbiter()
	listener := &recordingListener{}
	arbiter.SetListener(listener)

	s := NewSender(&fakeDialer{build: func(string, int) (*fakeTransport, error) { return ft, nil }}, arbiter)
	defer s.Close()

	ok, _ := s.SendSms(context.Background(), "COM5", "+123", "hi")
	require.False(t, ok)
	require.Equal(t, []string{"COM5"}, listener.resumed, "listener must resume on the error path")
}

func TestSenderCachesPortAcrossSends(t *testing.T) {
	dialer := &fakeDialer{build: func(string, int) (*fakeTransport, error) {
		ft := newFakeTransport()
		ft.respond = sendModem("\r\n+CMGS: 1\r\n\r\nOK\r\n")
		return ft, nil
	}}
	s := NewSender(dialer, NewPortArbiter())
	defer s.Close()

	ok, _ := s.SendSms(context.Background(), "COM2", "+123", "one")
	require.True(t, ok)
	ok, _ = s.SendSms(context.Background(), "COM2", "+123", "two")
	require.True(t, ok)
	require.Len(t, dialer.opened(), 1, "second send must reuse the cached handle")
}

func TestSendTransactionCoexistsWithListener(t *testing.T) {
	// One shared physical port: the listener and the sender each open
	// their own handle; the listener's is closed before the sender
	// opens, and reopened after the send.
	var handles []*fakeTransport
	dialer := &fakeDialer{build: func(string, int) (*fakeTransport, error) {
		ft := newFakeTransport()
		ft.respond = sendModem("\r\n+CMGS: 3\r\n\r\nOK\r\n")
		handles = append(handles, ft)
		return ft, nil
	}}

	arbiter := NewPortArbiter()
	r := NewReceiver(dialer, arbiter, HangupPolicy{})
	smsCh := make(chan SmsReceivedDto, 4)
	r.OnSmsReceived = func(d SmsReceivedDto) { smsCh <- d }
	r.OnCallHangup = func(CallHangupDto) {}
	require.NoError(t, r.StartListening(PortSpec{PortName: "COM5", BaudRate: 115200}))
	defer r.Stop()

	s := NewSender(dialer, arbiter)
	defer s.Close()

	ok, errMsg := s.SendSms(context.Background(), "COM5", "+123", "hi")
	require.True(t, ok, errMsg)

	// handles[0] = listener's first open, handles[1] = sender's,
	// handles[2] = listener's reopen on resume.
	require.Len(t, handles, 3)
	require.True(t, handles[0].isClosed(), "listener handle must close before the sender opens")
	require.Contains(t, handles[1].writtenString(), "AT+CMGS=")
	require.Contains(t, handles[2].writtenString(), "AT+CMGF=1", "resume must re-initialize")

	// A message arriving after resume is received normally.
	handles[2].push("+CMT: \"+1999\",,\"25/05/05,12:00:00+00\"\r\nafter resume\r\n")
	require.True(t, waitFor(5*time.Second, func() bool { return len(smsCh) == 1 }))
}
