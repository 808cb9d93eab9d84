package modem

import (
	"encoding/hex"
	"strings"

	"github.com/warthog618/sms/encoding/ucs2"
)

// DecodeUcs2IfNeeded decodes s as hex-encoded UCS2 (UTF-16BE) when it
// looks like one, and returns it unchanged otherwise. Modems configured
// with AT+CSCS="UCS2" deliver addresses and bodies in this form.
func DecodeUcs2IfNeeded(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\r', '\n', '"':
			return -1
		}
		return r
	}, s)

	if len(cleaned) < 4 || !isHex(cleaned) {
		return s
	}

	// Trim odd trailing half bytes or half words down to whole UCS2
	// code units (4 hex chars each).
	cleaned = cleaned[:len(cleaned)-len(cleaned)%4]
	if cleaned == "" {
		return s
	}

	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return s
	}
	runes, err := ucs2.Decode(b)
	if err != nil {
		return s
	}
	return string(runes)
}

// EncodeUcs2Hex hex-encodes s as UTF-16BE, the payload form modems
// expect under AT+CSCS="UCS2".
func EncodeUcs2Hex(s string) string {
	b := ucs2.Encode([]rune(s))
	return strings.ToUpper(hex.EncodeToString(b))
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
