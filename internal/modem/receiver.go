package modem

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pccr10001/smsfleet/pkg/logger"
)

const (
	clipCacheTTL        = 2 * time.Minute
	ringBufferWatermark = 4096
	cmtBufferWatermark  = 10000
	initCommandGap      = 200 * time.Millisecond
	initCommandTimeout  = 3 * time.Second
	storedReadTimeout   = 5 * time.Second
	hangupWriteGap      = 150 * time.Millisecond
	rawTailLimit        = 512
)

// HangupPolicy controls the auto-hangup of inbound calls.
type HangupPolicy struct {
	Enabled   bool
	Delay     time.Duration
	Cooldown  time.Duration
	Whitelist []string
}

// Receiver listens on a set of ports for unsolicited modem output:
// inbound SMS (+CMTI stored, +CMT pushed) and inbound calls
// (RING/+CLIP), which it hangs up according to policy.
type Receiver struct {
	dialer  Dialer
	arbiter *PortArbiter
	policy  HangupPolicy

	// Event sinks. Both must be set before StartListening.
	OnSmsReceived func(SmsReceivedDto)
	OnCallHangup  func(CallHangupDto)

	mu      sync.Mutex
	ports   map[string]*portListener
	running bool
}

func NewReceiver(dialer Dialer, arbiter *PortArbiter, policy HangupPolicy) *Receiver {
	r := &Receiver{
		dialer:  dialer,
		arbiter: arbiter,
		policy:  policy,
		ports:   make(map[string]*portListener),
	}
	arbiter.SetListener(r)
	return r
}

// StartListening attaches a listener to every given port. Calling it
// while already running logs and returns.
func (r *Receiver) StartListening(specs ...PortSpec) error {
	if r.OnSmsReceived == nil || r.OnCallHangup == nil {
		return errors.New("receiver: event sinks must be set before listening")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		logger.Log.Info("SMS receiver already running, ignoring start request")
		return nil
	}
	r.running = true
	r.mu.Unlock()

	for _, spec := range specs {
		pl := &portListener{
			recv:  r,
			name:  spec.PortName,
			baud:  spec.BaudRate,
			cmdMu: r.arbiter.CommandLock(spec.PortName),
		}
		r.mu.Lock()
		r.ports[spec.PortName] = pl
		r.mu.Unlock()

		if err := pl.attach(); err != nil {
			logger.Log.Errorf("[%s] Failed to attach listener: %v", spec.PortName, err)
			continue
		}
		logger.Log.Infof("[%s] SMS listener attached at %d baud", spec.PortName, spec.BaudRate)
	}
	return nil
}

// Stop detaches all listeners without waiting.
func (r *Receiver) Stop() {
	r.mu.Lock()
	listeners := make([]*portListener, 0, len(r.ports))
	for _, pl := range r.ports {
		listeners = append(listeners, pl)
	}
	r.ports = make(map[string]*portListener)
	r.running = false
	r.mu.Unlock()

	for _, pl := range listeners {
		pl.detach()
	}
}

// StopListening stops all listeners and returns once every port has
// been released or the context expires.
func (r *Receiver) StopListening(ctx context.Context) error {
	r.mu.Lock()
	listeners := make([]*portListener, 0, len(r.ports))
	for _, pl := range r.ports {
		listeners = append(listeners, pl)
	}
	r.ports = make(map[string]*portListener)
	r.running = false
	r.mu.Unlock()

	for _, pl := range listeners {
		done := pl.detach()
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// PauseListening releases the OS handle on one port so another owner
// (the sender) can open it. Returns false when the port is not being
// listened on.
func (r *Receiver) PauseListening(portName string) bool {
	r.mu.Lock()
	pl := r.ports[portName]
	r.mu.Unlock()
	if pl == nil {
		return false
	}
	return pl.pause()
}

// ResumeListening reopens a paused port and re-runs the init sequence.
func (r *Receiver) ResumeListening(ctx context.Context, portName string) bool {
	r.mu.Lock()
	pl := r.ports[portName]
	r.mu.Unlock()
	if pl == nil {
		return false
	}
	return pl.resume(ctx)
}

// initSequence configures the modem for text-mode push delivery.
// Failures are logged but non-fatal; the listener still attaches.
var initSequence = []string{"ATE0", "AT+CMGF=1", "AT+CNMI=2,2,0,0,0", `AT+CSCS="GSM"`}

// portListener owns one port's transport, URC buffer and per-port
// caches (last CLIP, last hangup, last chunk).
type portListener struct {
	recv  *Receiver
	name  string
	baud  int
	cmdMu *sync.Mutex

	mu     sync.Mutex
	t      Transport
	buf    string
	paused bool

	lastCaller   string
	lastCallerAt time.Time
	lastHangup   time.Time
	lastChunk    string

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

func (pl *portListener) attach() error {
	t, err := pl.recv.dialer.Dial(pl.name, pl.baud)
	if err != nil {
		return err
	}

	pl.cmdMu.Lock()
	pl.initialize(t)
	pl.cmdMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	pl.mu.Lock()
	pl.t = t
	pl.paused = false
	pl.loopCancel = cancel
	pl.loopDone = done
	pl.mu.Unlock()

	go pl.run(ctx, t, done)
	return nil
}

func (pl *portListener) initialize(t Transport) {
	for _, cmd := range initSequence {
		if _, err := atRequest(t, cmd, initCommandTimeout); err != nil {
			logger.Log.Warnf("[%s] Init command %s failed: %v", pl.name, cmd, err)
		}
		time.Sleep(initCommandGap)
	}
}

// detach stops the loop and closes the transport. Returns the loop's
// done channel, or nil when no loop was running.
func (pl *portListener) detach() <-chan struct{} {
	pl.mu.Lock()
	cancel := pl.loopCancel
	done := pl.loopDone
	t := pl.t
	pl.t = nil
	pl.loopCancel = nil
	pl.loopDone = nil
	pl.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		t.Close()
	}
	return done
}

func (pl *portListener) pause() bool {
	pl.mu.Lock()
	if pl.paused || pl.t == nil {
		pl.mu.Unlock()
		return false
	}
	pl.paused = true
	pl.mu.Unlock()

	done := pl.detach()
	if done != nil {
		<-done
	}
	logger.Log.Infof("[%s] Listener paused", pl.name)
	return true
}

func (pl *portListener) resume(ctx context.Context) bool {
	pl.mu.Lock()
	if !pl.paused {
		pl.mu.Unlock()
		return false
	}
	pl.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	if err := pl.attach(); err != nil {
		logger.Log.Errorf("[%s] Failed to resume listener: %v", pl.name, err)
		return false
	}
	logger.Log.Infof("[%s] Listener resumed", pl.name)
	return true
}

func (pl *portListener) transport() Transport {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.t
}

func (pl *portListener) run(ctx context.Context, t Transport, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = t.SetReadTimeout(listenTimeout)
		n, err := t.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				logger.Log.Errorf("[%s] Listener read error: %v", pl.name, err)
			}
			return
		}
		if n == 0 {
			continue
		}

		chunk := string(buf[:n])
		pl.mu.Lock()
		pl.buf += chunk
		pl.lastChunk = truncateTail(chunk, rawTailLimit)
		pl.mu.Unlock()

		// Keep draining: one append may carry several URCs.
		for pl.process() {
		}
	}
}

var (
	cmtiRe      = regexp.MustCompile(`\+CMTI:\s*"[^"]*"\s*,\s*(\d+)`)
	cmtHeaderRe = regexp.MustCompile(`\+CMT:\s*"([^"]*)"\s*,[^,\r\n]*,\s*"([^"]*)"[^\r\n]*\r?\n`)
	clipRe      = regexp.MustCompile(`\+CLIP:\s*"([^"]*)"`)
	smsTsRe     = regexp.MustCompile(`^(\d\d)/(\d\d)/(\d\d),(\d\d):(\d\d):(\d\d)`)
)

// process examines the URC buffer after each append: call fragments
// first, then stored-SMS notifications, then direct pushes. It reports
// whether it consumed anything, so callers can drain a buffer holding
// several URCs.
func (pl *portListener) process() bool {
	pl.mu.Lock()
	data := pl.buf
	pl.mu.Unlock()
	if data == "" {
		return false
	}

	// 1. Incoming-call fragment. RING may arrive before +CLIP, so the
	// caller is cached and resolved again after the hangup delay.
	if strings.Contains(data, "RING") || strings.Contains(data, "+CLIP:") {
		caller := lastClipCaller(data)
		pl.mu.Lock()
		if caller != "" {
			pl.lastCaller = caller
			pl.lastCallerAt = time.Now()
		}
		pl.mu.Unlock()

		go pl.autoHangup()

		if caller != "" || len(data) > ringBufferWatermark {
			pl.mu.Lock()
			pl.buf = ""
			pl.mu.Unlock()
			return true
		}
	}

	// 2. Stored-SMS notification.
	if m := cmtiRe.FindStringSubmatchIndex(data); m != nil {
		index, _ := strconv.Atoi(data[m[2]:m[3]])
		pl.handleStoredSms(index)
		pl.consume(m[1])
		return true
	}

	// 3. Direct push.
	return pl.processCmt(data)
}

// consume drops n leading bytes from the buffer.
func (pl *portListener) consume(n int) {
	pl.mu.Lock()
	if n >= len(pl.buf) {
		pl.buf = ""
	} else {
		pl.buf = pl.buf[n:]
	}
	pl.mu.Unlock()
}

// lastClipCaller extracts the caller from the last +CLIP line present.
func lastClipCaller(data string) string {
	ms := clipRe.FindAllStringSubmatch(data, -1)
	if len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1][1]
}

// handleStoredSms reads a message at the notified index, emits it and
// deletes it from modem storage. Reads share the per-port command
// mutex with the hangup writer.
func (pl *portListener) handleStoredSms(index int) {
	pl.cmdMu.Lock()
	defer pl.cmdMu.Unlock()

	t := pl.transport()
	if t == nil {
		return
	}

	readCmd := fmt.Sprintf("AT+CMGR=%d", index)
	raw, err := atRequest(t, readCmd, storedReadTimeout)
	if err != nil {
		logger.Log.Warnf("[%s] %s: %v", pl.name, readCmd, err)
	}

	// Some modems answer CMGR with a bare OK; fall back to listing.
	if extractStoredPayload(raw) == "" {
		for _, cmd := range []string{`AT+CMGL="ALL"`, `AT+CMGL="REC UNREAD"`} {
			raw, err = atRequest(t, cmd, storedReadTimeout)
			if err != nil {
				logger.Log.Warnf("[%s] %s: %v", pl.name, cmd, err)
				continue
			}
			if extractStoredPayload(raw) != "" {
				break
			}
		}
	}

	sender, ts, content, ok := parseStoredSms(raw)
	if !ok {
		logger.Log.Warnf("[%s] Unparseable stored SMS at index %d: %q", pl.name, index, raw)
		return
	}

	dto := SmsReceivedDto{
		ComPort:        pl.name,
		SenderNumber:   sender,
		MessageContent: DecodeUcs2IfNeeded(content),
		ReceivedTime:   parseSmsTimestamp(ts),
		SmsTimestamp:   ts,
	}
	pl.recv.OnSmsReceived(dto)

	if _, err := atRequest(t, fmt.Sprintf("AT+CMGD=%d", index), storedReadTimeout); err != nil {
		logger.Log.Warnf("[%s] Failed to delete stored SMS %d: %v", pl.name, index, err)
	}
}

// extractStoredPayload returns the response minus echo and terminator
// lines; "" means an empty or OK-only answer.
func extractStoredPayload(raw string) string {
	var sb strings.Builder
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if line == "" || line == "OK" || strings.HasPrefix(line, "AT+") {
			continue
		}
		sb.WriteString(line)
	}
	return sb.String()
}

var quotedRe = regexp.MustCompile(`"([^"]*)"`)

// parseStoredSms parses a +CMGR/+CMGL response. The header line yields
// sender and raw timestamp; subsequent non-empty, non-OK lines joined
// by \n form the content.
func parseStoredSms(raw string) (sender, ts, content string, ok bool) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r", "\n"), "\n")
	headerSeen := false
	var contentLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == "OK" || isTerminatorLine(line) || strings.HasPrefix(line, "AT+") {
			continue
		}
		if strings.HasPrefix(line, "+CMGR:") || strings.HasPrefix(line, "+CMGL:") {
			if headerSeen {
				break // second listed message, stop at the first
			}
			headerSeen = true
			for _, q := range quotedRe.FindAllStringSubmatch(line, -1) {
				v := q[1]
				if sender == "" && (strings.HasPrefix(v, "+") || (v != "" && v == digitRun(v))) {
					sender = v
				}
				if smsTsRe.MatchString(v) {
					ts = v
				}
			}
			continue
		}
		if headerSeen {
			contentLines = append(contentLines, line)
		}
	}
	if !headerSeen {
		return "", "", "", false
	}
	return sender, ts, strings.Join(contentLines, "\n"), true
}

// parseSmsTimestamp converts a "YY/MM/DD,HH:MM:SS±TZ" AT timestamp to
// UTC, reading YY as 2000+YY. The wall time is taken as is.
func parseSmsTimestamp(ts string) time.Time {
	m := smsTsRe.FindStringSubmatch(strings.TrimSpace(ts))
	if m == nil {
		return time.Now().UTC()
	}
	yy, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	dd, _ := strconv.Atoi(m[3])
	hh, _ := strconv.Atoi(m[4])
	mi, _ := strconv.Atoi(m[5])
	ss, _ := strconv.Atoi(m[6])
	return time.Date(2000+yy, time.Month(mo), dd, hh, mi, ss, 0, time.UTC)
}

// processCmt handles a pushed +CMT. A matched header with incomplete
// content leaves the buffer untouched so more data can arrive; only a
// runaway buffer is dropped. Reports whether the buffer shrank.
func (pl *portListener) processCmt(data string) bool {
	start := strings.Index(data, "+CMT:")
	if start < 0 {
		return pl.trimIdleBuffer(data)
	}

	m := cmtHeaderRe.FindStringSubmatchIndex(data[start:])
	if m == nil {
		// Header line still incomplete.
		return pl.trimIdleBuffer(data)
	}

	sender := data[start+m[2] : start+m[3]]
	ts := data[start+m[4] : start+m[5]]
	rest := data[start+m[1]:]

	content, consumed, complete := extractCmtContent(rest)
	if !complete {
		return pl.trimIdleBuffer(data)
	}

	dto := SmsReceivedDto{
		ComPort:        pl.name,
		SenderNumber:   sender,
		MessageContent: DecodeUcs2IfNeeded(content),
		ReceivedTime:   parseSmsTimestamp(ts),
		SmsTimestamp:   ts,
	}
	pl.recv.OnSmsReceived(dto)

	pl.consume(start + m[1] + consumed)
	return true
}

// trimIdleBuffer bounds growth while waiting for more data.
func (pl *portListener) trimIdleBuffer(data string) bool {
	if len(data) <= cmtBufferWatermark {
		return false
	}
	pl.mu.Lock()
	pl.buf = ""
	pl.mu.Unlock()
	return true
}

// extractCmtContent takes everything after the +CMT header line and
// returns the message body. The body ends at a blank line, at the next
// +CMT header, at an OK line, or at the buffer end when the last line
// is complete.
func extractCmtContent(rest string) (content string, consumed int, complete bool) {
	trimmed := strings.TrimLeft(rest, "\r\n")
	lead := len(rest) - len(trimmed)

	for _, term := range []string{"\r\n\r\n", "\n\n", "\n+CMT:", "\nOK"} {
		if i := strings.Index(trimmed, term); i >= 0 {
			end := i
			if term == "\n+CMT:" {
				// Leave the next header for the following pass.
				return strings.TrimRight(trimmed[:end], "\r"), lead + end + 1, true
			}
			return strings.TrimRight(trimmed[:end], "\r"), lead + end + len(term), true
		}
	}
	if strings.HasSuffix(trimmed, "\r\n") || strings.HasSuffix(trimmed, "\n") {
		return strings.TrimRight(trimmed, "\r\n"), len(rest), true
	}
	return "", 0, false
}

// autoHangup drops the current inbound call after the configured
// delay unless the caller is whitelisted. It only ever writes to the
// port, never reads, so it cannot race the listener's read loop.
func (pl *portListener) autoHangup() {
	policy := pl.recv.policy
	if !policy.Enabled {
		return
	}

	pl.cmdMu.Lock()
	defer pl.cmdMu.Unlock()

	pl.mu.Lock()
	last := pl.lastHangup
	pl.mu.Unlock()
	if time.Since(last) < policy.Cooldown {
		return
	}

	// RING often precedes +CLIP; the delay gives the caller id time
	// to arrive before the whitelist decision.
	time.Sleep(policy.Delay)

	pl.mu.Lock()
	caller := ""
	if pl.lastCaller != "" && time.Since(pl.lastCallerAt) <= clipCacheTTL {
		caller = pl.lastCaller
	}
	tail := truncateTail(pl.buf, rawTailLimit)
	chunk := pl.lastChunk
	t := pl.t
	pl.mu.Unlock()

	if t == nil {
		return
	}
	if whitelisted(caller, policy.Whitelist) {
		logger.Log.Infof("[%s] Incoming call from %s is whitelisted, not hanging up", pl.name, caller)
		return
	}

	if _, err := t.Write([]byte("ATH\r")); err != nil {
		logger.Log.Warnf("[%s] ATH write failed: %v", pl.name, err)
		return
	}
	time.Sleep(hangupWriteGap)
	if _, err := t.Write([]byte("AT+CHUP\r")); err != nil {
		logger.Log.Warnf("[%s] AT+CHUP write failed: %v", pl.name, err)
	}

	now := time.Now()
	pl.mu.Lock()
	pl.lastHangup = now
	pl.mu.Unlock()

	pl.recv.OnCallHangup(CallHangupDto{
		ComPort:      pl.name,
		CallerNumber: caller,
		HangupTime:   now.UTC(),
		Reason:       "AutoHangup",
		RawLine:      strings.TrimSpace(tail + " | " + chunk),
	})
	logger.Log.Infof("[%s] Auto hangup of call from %s", pl.name, caller)
}

func whitelisted(caller string, whitelist []string) bool {
	if caller == "" {
		return false
	}
	lc := strings.ToLower(caller)
	for _, w := range whitelist {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(lc, w) {
			return true
		}
	}
	return false
}

func truncateTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
