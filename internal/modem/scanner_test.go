package modem

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// detailModem scripts the detail queries of a healthy modem.
func detailModem(cmd string) string {
	switch cmd {
	case "AT":
		return "\r\nOK\r\n"
	case "AT+CGMI":
		return "\r\nQuectel\r\nOK\r\n"
	case "AT+CGMM":
		return "\r\nEC25\r\nOK\r\n"
	case "AT+CGMR":
		return "\r\nEC25EFAR06A01M4G\r\nOK\r\n"
	case "AT+CGSN":
		return "\r\n867698041234567\r\nOK\r\n"
	case "AT+CPIN?":
		return "\r\n+CPIN: READY\r\nOK\r\n"
	case "AT+COPS?":
		return "\r\n+COPS: 0,0,\"Chunghwa Telecom\",7\r\nOK\r\n"
	case "AT+CSQ":
		return "\r\n+CSQ: 22,99\r\nOK\r\n"
	case "AT+CREG?":
		return "\r\n+CREG: 0,1\r\nOK\r\n"
	case "AT+CCID":
		return "\r\nERROR\r\n"
	case "AT+ICCID":
		return "\r\n+ICCID: 89886920041234567890\r\nOK\r\n"
	case "AT+CNUM":
		return "\r\n+CNUM: ,\"+886912345678\",145\r\nOK\r\n"
	}
	if strings.HasPrefix(cmd, "AT") {
		return "\r\nOK\r\n"
	}
	return ""
}

func TestScanIdentifiesModemAndEmitsTwice(t *testing.T) {
	dialer := &fakeDialer{build: func(name string, baud int) (*fakeTransport, error) {
		if baud != 9600 {
			// First rate is taken by another process.
			return nil, errors.New("port busy")
		}
		ft := newFakeTransport()
		ft.respond = detailModem
		return ft, nil
	}}

	s := NewScanner("EDGE01", dialer, func() ([]string, error) { return []string{"COM3"}, nil }, []int{115200, 9600})

	var emissions []PortInfo
	result := s.Scan(context.Background(), func(p PortInfo) { emissions = append(emissions, p) })

	require.True(t, result.Success)
	require.Len(t, result.Ports, 1)
	require.Len(t, emissions, 2, "port must be emitted on identification and again with details")

	first, second := emissions[0], emissions[1]
	require.True(t, first.IsSmsModem)
	require.Nil(t, first.ModemInfo)
	require.Equal(t, 9600, first.BaudRate)
	require.Equal(t, "EDGE01", first.DeviceID)

	require.NotNil(t, second.ModemInfo)
	mi := second.ModemInfo
	require.Equal(t, "Quectel", mi.Manufacturer)
	require.Equal(t, "EC25", mi.Model)
	require.Equal(t, "867698041234567", mi.IMEI)
	require.True(t, mi.HasSimCard)
	require.Equal(t, "Chunghwa Telecom", mi.Operator)
	require.Equal(t, 22, mi.SignalStrength)
	require.Equal(t, "Good", mi.SignalQuality)
	require.Equal(t, "Registered Home", mi.NetworkStatus)
	require.Equal(t, "89886920041234567890", mi.ICCID, "ICCID must fall through the vendor variants")
	require.Equal(t, "+886912345678", mi.PhoneNumber)
}

func TestScanPortOpenFailure(t *testing.T) {
	dialer := &fakeDialer{build: func(string, int) (*fakeTransport, error) {
		return nil, errors.New("access denied")
	}}
	s := NewScanner("EDGE01", dialer, func() ([]string, error) { return []string{"COM9"}, nil }, []int{115200})

	result := s.Scan(context.Background(), nil)
	require.True(t, result.Success, "a dead port never fails the scan")
	require.Len(t, result.Ports, 1)
	require.False(t, result.Ports[0].IsAvailable)
	require.False(t, result.Ports[0].IsSmsModem)
}

func TestScanSkipsSimQueriesWithoutSim(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(cmd string) string {
		if cmd == "AT+CPIN?" {
			return "\r\n+CME ERROR: 10\r\n"
		}
		return detailModem(cmd)
	}
	dialer := &fakeDialer{build: func(string, int) (*fakeTransport, error) { return ft, nil }}
	s := NewScanner("EDGE01", dialer, func() ([]string, error) { return []string{"COM3"}, nil }, []int{115200})

	result := s.Scan(context.Background(), nil)
	mi := result.Ports[0].ModemInfo
	require.NotNil(t, mi)
	require.False(t, mi.HasSimCard)
	require.Empty(t, mi.ICCID)
	require.Empty(t, mi.PhoneNumber)
	require.NotContains(t, ft.writtenString(), "AT+CNUM")
}

func TestSignalQualityMapping(t *testing.T) {
	cases := map[int]string{
		0: "No Signal", 99: "No Signal",
		1: "Very Weak", 9: "Very Weak",
		10: "Weak", 14: "Weak",
		15: "Fair", 19: "Fair",
		20: "Good", 24: "Good",
		25: "Excellent", 31: "Excellent",
	}
	for rssi, want := range cases {
		require.Equal(t, want, SignalQuality(rssi), "rssi %d", rssi)
	}
}

func TestParseNetworkStatus(t *testing.T) {
	cases := map[string]string{
		"+CREG: 0,0": "Not registered",
		"+CREG: 0,1": "Registered Home",
		"+CREG: 0,2": "Searching",
		"+CREG: 0,3": "Denied",
		"+CREG: 0,5": "Registered Roaming",
		"+CREG: 0,4": "Unknown",
	}
	for payload, want := range cases {
		require.Equal(t, want, parseNetworkStatus(payload))
	}
	require.Equal(t, "", parseNetworkStatus("garbage"))
}

func TestParseOperatorNumericLookup(t *testing.T) {
	// Without a loaded MCC/MNC table the numeric code passes through.
	require.Equal(t, "46692", parseOperator(`+COPS: 0,2,"46692",7`))
	require.Equal(t, "Far EasTone", parseOperator(`+COPS: 0,0,"Far EasTone",7`))
	require.Equal(t, "", parseOperator("+COPS: 0"))
}

func TestParseSignal(t *testing.T) {
	require.Equal(t, 22, parseSignal("+CSQ: 22,99"))
	require.Equal(t, 99, parseSignal("+CSQ: 99,99"))
	require.Equal(t, 99, parseSignal("garbage"))
}
