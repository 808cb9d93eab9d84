package hub

import (
	"encoding/json"
	"time"
)

// MessageType names one message of the hub wire protocol.
type MessageType string

const (
	// Agent -> server
	MessageTypeRegisterDevice       MessageType = "RegisterDevice"
	MessageTypeScanAcknowledgment   MessageType = "SendScanAcknowledgment"
	MessageTypeComPortFound         MessageType = "ComPortFound"
	MessageTypeComPortScanResult    MessageType = "ComPortScanResult"
	MessageTypeComPortScanCompleted MessageType = "ComPortScanCompleted"
	MessageTypeSmsReceived          MessageType = "SmsReceived"
	MessageTypeCallHangupRecord     MessageType = "CallHangupRecord"
	MessageTypeSmsSendResult        MessageType = "SmsSendResult"

	// Server -> agent
	MessageTypeScanComPorts     MessageType = "ScanComPorts"
	MessageTypeStartSmsReceiver MessageType = "StartSmsReceiver"
	MessageTypeStopSmsReceiver  MessageType = "StopSmsReceiver"
	MessageTypeSendSms          MessageType = "SendSms"

	// Server -> client broadcasts
	MessageTypeDeviceConnected    MessageType = "DeviceConnected"
	MessageTypeDeviceDisconnected MessageType = "DeviceDisconnected"
)

// Message is the wire envelope. Payloads are JSON with lowerCamelCase
// field names.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Timestamp: time.Now().UTC(), Data: data}, nil
}

func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

type RegisterDevicePayload struct {
	DeviceID string `json:"deviceId"`
}

type ScanAcknowledgmentPayload struct {
	DeviceID string `json:"deviceId"`
	Message  string `json:"message"`
}

type ComPortFoundPayload struct {
	DeviceID string `json:"deviceId"`
	PortJson string `json:"portJson"`
}

type ComPortScanResultPayload struct {
	DeviceID       string `json:"deviceId"`
	ScanResultJson string `json:"scanResultJson"`
}

type ComPortScanCompletedPayload struct {
	DeviceID string `json:"deviceId"`
	IsoTime  string `json:"isoTime"`
}

type SmsReceivedPayload struct {
	DeviceID string `json:"deviceId"`
	SmsJson  string `json:"smsJson"`
}

type CallHangupPayload struct {
	DeviceID   string `json:"deviceId"`
	HangupJson string `json:"hangupJson"`
}

type SmsSendResultPayload struct {
	RecordID     uint   `json:"recordId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type ScanComPortsPayload struct {
	DeviceID string `json:"deviceId"`
}

type ReceiverPortPayload struct {
	PortName string `json:"portName"`
	BaudRate int    `json:"baudRate"`
}

type StartSmsReceiverPayload struct {
	DeviceID string                `json:"deviceId"`
	Ports    []ReceiverPortPayload `json:"ports"`
}

type StopSmsReceiverPayload struct {
	DeviceID string `json:"deviceId"`
}

type SendSmsPayload struct {
	DeviceID       string `json:"deviceId"`
	ComPort        string `json:"comPort"`
	TargetNumber   string `json:"targetNumber"`
	MessageContent string `json:"messageContent"`
	RecordID       uint   `json:"recordId"`
}

type DevicePresencePayload struct {
	DeviceID string `json:"deviceId"`
}
