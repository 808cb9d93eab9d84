package modem

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pccr10001/smsfleet/internal/mccmnc"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

const (
	probeAttempts    = 3
	probeBudget      = 1500 * time.Millisecond
	settleDelay      = 300 * time.Millisecond
	detailTimeout    = 3 * time.Second
	detailBudget     = 25 * time.Second
	defaultScanBauds = "115200,9600,19200,38400,57600"
)

// Scanner probes serial ports for AT-capable SMS modems and gathers
// their details.
type Scanner struct {
	DeviceID  string
	Dialer    Dialer
	Enumerate PortEnumerator
	BaudRates []int
	Exclude   []string
}

func NewScanner(deviceID string, dialer Dialer, enumerate PortEnumerator, baudRates []int) *Scanner {
	if len(baudRates) == 0 {
		for _, s := range strings.Split(defaultScanBauds, ",") {
			b, _ := strconv.Atoi(s)
			baudRates = append(baudRates, b)
		}
	}
	return &Scanner{DeviceID: deviceID, Dialer: dialer, Enumerate: enumerate, BaudRates: baudRates}
}

// Scan probes every enumerated port. Each identified modem is emitted
// twice through onPortFound: once right after identification with
// ModemInfo still nil, and again once details are gathered. The second
// emission is an upsert keyed by (deviceId, portName).
func (s *Scanner) Scan(ctx context.Context, onPortFound func(PortInfo)) ScanResult {
	result := ScanResult{ScanTime: time.Now().UTC()}

	names, err := s.Enumerate()
	if err != nil {
		logger.Log.Errorf("Failed to list serial ports: %v", err)
		result.Error = err.Error()
		return result
	}

	for _, name := range names {
		if s.excluded(name) {
			continue
		}
		select {
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return result
		default:
		}

		info := s.scanPort(ctx, name, onPortFound)
		result.Ports = append(result.Ports, info)
	}

	result.Success = true
	return result
}

func (s *Scanner) excluded(name string) bool {
	for _, e := range s.Exclude {
		if strings.EqualFold(strings.TrimSpace(e), name) {
			return true
		}
	}
	return false
}

func (s *Scanner) scanPort(ctx context.Context, name string, onPortFound func(PortInfo)) PortInfo {
	info := PortInfo{DeviceID: s.DeviceID, PortName: name}

	for _, baud := range s.BaudRates {
		t, err := s.Dialer.Dial(name, baud)
		if err != nil {
			logger.Log.Debugf("[%s] Open at %d failed: %v", name, baud, err)
			continue
		}
		info.IsAvailable = true

		_ = t.ResetInputBuffer()
		_ = t.ResetOutputBuffer()
		time.Sleep(settleDelay)

		raw, ok := probe(t)
		if !ok {
			t.Close()
			continue
		}

		info.IsSmsModem = true
		info.BaudRate = baud
		info.Raw = raw
		logger.Log.Infof("[%s] SMS modem identified at %d baud", name, baud)
		if onPortFound != nil {
			onPortFound(info)
		}

		mi := s.gatherDetails(ctx, t, name)
		info.ModemInfo = mi
		t.Close()
		if onPortFound != nil {
			onPortFound(info)
		}
		return info
	}

	logger.Log.Debugf("[%s] No modem found (available=%v)", name, info.IsAvailable)
	return info
}

// probe writes AT and, failing a recognizable response, AT with CRLF.
// A response is recognized when the collected bytes contain any
// terminator token.
func probe(t Transport) (string, bool) {
	for attempt := 0; attempt < probeAttempts; attempt++ {
		for _, cmd := range []string{"AT\r", "AT\r\n"} {
			_ = t.ResetInputBuffer()
			if _, err := t.Write([]byte(cmd)); err != nil {
				return "", false
			}
			deadline := time.Now().Add(probeBudget)
			var sb strings.Builder
			for time.Now().Before(deadline) {
				chunk := readExisting(t)
				if chunk != "" {
					sb.WriteString(chunk)
					if hasTerminator(sb.String()) {
						return strings.TrimSpace(sb.String()), true
					}
				}
			}
			if hasTerminator(sb.String()) {
				return strings.TrimSpace(sb.String()), true
			}
		}
	}
	return "", false
}

// gatherDetails runs the detail queries under a single overall budget.
// Any query that stalls is skipped, never fatal.
func (s *Scanner) gatherDetails(ctx context.Context, t Transport, name string) *ModemInfo {
	ctx, cancel := context.WithTimeout(ctx, detailBudget)
	defer cancel()

	mi := &ModemInfo{}

	mi.Manufacturer = s.query(ctx, t, name, "AT+CGMI")
	mi.Model = s.query(ctx, t, name, "AT+CGMM")
	mi.Firmware = s.query(ctx, t, name, "AT+CGMR")
	mi.IMEI = digitRun(s.query(ctx, t, name, "AT+CGSN"))

	pin := s.query(ctx, t, name, "AT+CPIN?")
	mi.SimStatus = strings.TrimSpace(strings.TrimPrefix(pin, "+CPIN:"))
	mi.HasSimCard = strings.Contains(pin, "READY") || strings.Contains(pin, "SIM PIN")

	cops := s.query(ctx, t, name, "AT+COPS?")
	mi.Operator = parseOperator(cops)

	csq := s.query(ctx, t, name, "AT+CSQ")
	mi.SignalStrength = parseSignal(csq)
	mi.SignalQuality = SignalQuality(mi.SignalStrength)

	creg := s.query(ctx, t, name, "AT+CREG?")
	mi.NetworkStatus = parseNetworkStatus(creg)

	if mi.HasSimCard {
		mi.ICCID = s.queryICCID(ctx, t, name)
		mi.PhoneNumber = parseOwnNumber(s.query(ctx, t, name, "AT+CNUM"))
	}

	return mi
}

func (s *Scanner) query(ctx context.Context, t Transport, name, cmd string) string {
	if ctx.Err() != nil {
		return ""
	}
	raw, err := atRequest(t, cmd, detailTimeout)
	if err != nil {
		logger.Log.Debugf("[%s] %s: %v", name, cmd, err)
		return ""
	}
	return extractPayload(raw, cmd)
}

// queryICCID walks the vendor variants until one yields a plausible
// ICCID (an 18-22 digit run).
func (s *Scanner) queryICCID(ctx context.Context, t Transport, name string) string {
	for _, cmd := range []string{"AT+CCID", "AT+ICCID", "AT^ICCID"} {
		run := digitRun(s.query(ctx, t, name, cmd))
		if len(run) >= 18 && len(run) <= 22 {
			return run
		}
	}
	return ""
}

// parseOperator extracts the first quoted operator string from a +COPS
// response, resolving numeric MCC/MNC codes to names when possible.
func parseOperator(payload string) string {
	op := firstQuoted(payload)
	if op == "" {
		return ""
	}
	if (len(op) == 5 || len(op) == 6) && digitRun(op) == op {
		if name := mccmnc.GetOperatorName(op[:3], op[3:]); name != "" {
			return name
		}
	}
	return op
}

func parseSignal(payload string) int {
	i := strings.Index(payload, "+CSQ:")
	if i < 0 {
		return 99
	}
	rest := strings.TrimSpace(payload[i+len("+CSQ:"):])
	if j := strings.IndexByte(rest, ','); j >= 0 {
		rest = rest[:j]
	}
	v, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 99
	}
	return v
}

// SignalQuality maps a raw CSQ rssi value to a human label.
func SignalQuality(rssi int) string {
	switch {
	case rssi == 0 || rssi == 99:
		return "No Signal"
	case rssi >= 1 && rssi <= 9:
		return "Very Weak"
	case rssi >= 10 && rssi <= 14:
		return "Weak"
	case rssi >= 15 && rssi <= 19:
		return "Fair"
	case rssi >= 20 && rssi <= 24:
		return "Good"
	case rssi >= 25 && rssi <= 31:
		return "Excellent"
	}
	return "No Signal"
}

func parseNetworkStatus(payload string) string {
	i := strings.Index(payload, "+CREG:")
	if i < 0 {
		return ""
	}
	fields := strings.Split(payload[i+len("+CREG:"):], ",")
	if len(fields) < 2 {
		return ""
	}
	switch strings.TrimSpace(fields[1]) {
	case "0":
		return "Not registered"
	case "1":
		return "Registered Home"
	case "2":
		return "Searching"
	case "3":
		return "Denied"
	case "5":
		return "Registered Roaming"
	}
	return "Unknown"
}

// parseOwnNumber extracts the subscriber number from a +CNUM response:
// the first quoted string starting with '+' or digits.
func parseOwnNumber(payload string) string {
	rest := payload
	for {
		q := firstQuoted(rest)
		if q == "" {
			return ""
		}
		if strings.HasPrefix(q, "+") || (q != "" && q == digitRun(q)) {
			return q
		}
		i := strings.Index(rest, "\""+q+"\"")
		if i < 0 {
			return ""
		}
		rest = rest[i+len(q)+2:]
	}
}
