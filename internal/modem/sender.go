package modem

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pccr10001/smsfleet/pkg/logger"
)

const (
	sendBaudRate      = 115200
	sendOpenSettle    = 500 * time.Millisecond
	sendPauseSettle   = 1 * time.Second
	sendInitGap       = 300 * time.Millisecond
	sendPromptTimeout = 10 * time.Second
	sendFinalTimeout  = 30 * time.Second
	ctrlZ             = 0x1A
)

// Sender performs single-attempt SMS send transactions. It keeps a
// per-port transport cache so repeated sends reuse the handle; the
// listener on the same port is paused for the duration of the
// transaction and always resumed.
type Sender struct {
	dialer  Dialer
	arbiter *PortArbiter

	mu    sync.Mutex
	ports map[string]Transport
}

func NewSender(dialer Dialer, arbiter *PortArbiter) *Sender {
	return &Sender{
		dialer:  dialer,
		arbiter: arbiter,
		ports:   make(map[string]Transport),
	}
}

// Close releases all cached port handles.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.ports {
		t.Close()
		delete(s.ports, name)
	}
}

var cmgsRefRe = regexp.MustCompile(`\+CMGS:\s*(\d+)`)

// SendSms sends one SMS on comPort. Exactly one AT-level attempt is
// made; the outcome is reported, never retried here.
func (s *Sender) SendSms(ctx context.Context, comPort, targetNumber, messageContent string) (bool, string) {
	if strings.TrimSpace(comPort) == "" {
		return false, "COM port is required"
	}
	if strings.TrimSpace(targetNumber) == "" {
		return false, "target number is required"
	}
	if messageContent == "" {
		return false, "message content is required"
	}

	token := s.arbiter.Pause(comPort)
	defer token.Resume(context.Background())

	if token.Paused() {
		// Give the kernel time to release the listener's handle.
		time.Sleep(sendPauseSettle)
	}

	t, fresh, err := s.openPort(comPort)
	if err != nil {
		return false, fmt.Sprintf("failed to open port: %v", err)
	}
	if fresh {
		time.Sleep(sendOpenSettle)
	}

	charset, target, payload := encodeSendPayload(targetNumber, messageContent)
	s.initialize(t, comPort, charset)

	ok, errMsg := s.dialog(ctx, t, comPort, target, payload)
	if !ok {
		// A failed dialog may leave the handle in a bad state; drop it
		// so the next send reopens.
		s.dropPort(comPort)
	}
	return ok, errMsg
}

func (s *Sender) openPort(comPort string) (Transport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ports[comPort]; ok {
		return t, false, nil
	}
	t, err := s.dialer.Dial(comPort, sendBaudRate)
	if err != nil {
		return nil, false, err
	}
	s.ports[comPort] = t
	return t, true, nil
}

func (s *Sender) dropPort(comPort string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ports[comPort]; ok {
		t.Close()
		delete(s.ports, comPort)
	}
}

func (s *Sender) initialize(t Transport, comPort, charset string) {
	if _, err := atRequest(t, "AT", initCommandTimeout); err != nil {
		logger.Log.Warnf("[%s] Modem not answering AT before send: %v", comPort, err)
	}
	time.Sleep(sendInitGap)
	for _, cmd := range []string{"ATE0", "AT+CMGF=1", fmt.Sprintf(`AT+CSCS=%q`, charset)} {
		if _, err := atRequest(t, cmd, initCommandTimeout); err != nil {
			logger.Log.Warnf("[%s] Send init %s failed: %v", comPort, cmd, err)
		}
		time.Sleep(sendInitGap)
	}
}

// dialog runs the CMGS exchange: prompt, payload, Ctrl-Z, final
// status.
func (s *Sender) dialog(ctx context.Context, t Transport, comPort, target, payload string) (bool, string) {
	_ = t.ResetInputBuffer()
	_ = t.ResetOutputBuffer()

	if _, err := t.Write([]byte(fmt.Sprintf("AT+CMGS=%q\r", target))); err != nil {
		return false, fmt.Sprintf("CMGS write failed: %v", err)
	}

	resp, status := awaitPrompt(ctx, t, sendPromptTimeout)
	switch status {
	case promptError:
		return false, fmt.Sprintf("modem rejected CMGS: %s", strings.TrimSpace(resp))
	case promptTimeout:
		return false, "timed out waiting for > prompt"
	}

	if _, err := t.Write(append([]byte(payload), ctrlZ)); err != nil {
		return false, fmt.Sprintf("payload write failed: %v", err)
	}

	final, ok, errMsg := awaitFinal(ctx, t, sendFinalTimeout)
	if !ok {
		return false, errMsg
	}
	if m := cmgsRefRe.FindStringSubmatch(final); m != nil {
		logger.Log.Infof("[%s] SMS accepted, message reference %s", comPort, m[1])
	}
	return true, ""
}

type promptStatus int

const (
	promptReady promptStatus = iota
	promptError
	promptTimeout
)

func awaitPrompt(ctx context.Context, t Transport, timeout time.Duration) (string, promptStatus) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return sb.String(), promptTimeout
		}
		chunk := readExisting(t)
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		data := sb.String()
		if strings.Contains(data, "ERROR") || strings.Contains(data, "+CMS ERROR") {
			return data, promptError
		}
		if strings.Contains(data, ">") {
			return data, promptReady
		}
	}
	return sb.String(), promptTimeout
}

func awaitFinal(ctx context.Context, t Transport, timeout time.Duration) (string, bool, string) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return sb.String(), false, "send canceled"
		}
		chunk := readExisting(t)
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		data := sb.String()
		if strings.Contains(data, "+CMS ERROR") || containsToken(data, "ERROR") {
			return data, false, fmt.Sprintf("modem send error: %s", strings.TrimSpace(data))
		}
		if strings.Contains(data, "+CMGS:") && containsToken(data, "OK") {
			return data, true, ""
		}
	}
	return sb.String(), false, "timed out waiting for send confirmation"
}

// encodeSendPayload picks the charset for a send. GSM-safe content is
// sent as is under "GSM"; anything else is hex-encoded UTF-16BE under
// "UCS2", address included, which is the payload form most modems
// expect there.
func encodeSendPayload(target, content string) (charset, encTarget, payload string) {
	if isGsmSafe(content) {
		return "GSM", target, content
	}
	return "UCS2", EncodeUcs2Hex(target), EncodeUcs2Hex(content)
}

// isGsmSafe approximates the GSM 03.38 basic set by printable ASCII.
func isGsmSafe(s string) bool {
	for _, r := range s {
		if r > 0x7E || (r < 0x20 && r != '\n' && r != '\r') {
			return false
		}
	}
	return true
}
