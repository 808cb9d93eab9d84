package modem

import "time"

// ModemInfo holds the details gathered from an identified SMS modem.
type ModemInfo struct {
	HasSimCard     bool   `json:"hasSimCard"`
	ICCID          string `json:"iccid,omitempty"`
	Operator       string `json:"operator,omitempty"`
	SignalStrength int    `json:"signalStrength"` // 0-31, 99=unknown
	SignalQuality  string `json:"signalQuality,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	Model          string `json:"model,omitempty"`
	Firmware       string `json:"firmware,omitempty"`
	IMEI           string `json:"imei,omitempty"`
	SimStatus      string `json:"simStatus,omitempty"`
	NetworkStatus  string `json:"networkStatus,omitempty"`
}

type PortInfo struct {
	DeviceID    string     `json:"deviceId,omitempty"`
	PortName    string     `json:"portName"`
	IsAvailable bool       `json:"isAvailable"`
	IsSmsModem  bool       `json:"isSmsModem"`
	BaudRate    int        `json:"baudRate,omitempty"`
	ModemInfo   *ModemInfo `json:"modemInfo,omitempty"`
	Raw         string     `json:"raw,omitempty"`
}

type ScanResult struct {
	ScanTime time.Time  `json:"scanTime"`
	Success  bool       `json:"success"`
	Error    string     `json:"error,omitempty"`
	Ports    []PortInfo `json:"ports"`
}

// PortSpec selects one port for the receiver, with the baud rate the
// scanner probed for it.
type PortSpec struct {
	PortName string `json:"portName"`
	BaudRate int    `json:"baudRate"`
}

type SmsReceivedDto struct {
	DeviceID       string    `json:"deviceId,omitempty"`
	ComPort        string    `json:"comPort"`
	SenderNumber   string    `json:"senderNumber"`
	MessageContent string    `json:"messageContent"`
	ReceivedTime   time.Time `json:"receivedTime"`
	SmsTimestamp   string    `json:"smsTimestamp,omitempty"`
}

type CallHangupDto struct {
	DeviceID     string    `json:"deviceId,omitempty"`
	ComPort      string    `json:"comPort"`
	CallerNumber string    `json:"callerNumber,omitempty"`
	HangupTime   time.Time `json:"hangupTime"`
	Reason       string    `json:"reason"`
	RawLine      string    `json:"rawLine,omitempty"`
}
