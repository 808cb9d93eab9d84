package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pccr10001/smsfleet/internal/hub"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/modem"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

// Driver binds the hub command surface to the local modem stack:
// scanner, receiver and sender all share one port arbiter.
type Driver struct {
	deviceID        string
	scanner         *modem.Scanner
	receiver        *modem.Receiver
	sender          *modem.Sender
	autoStartOnScan bool

	publish  func(hub.MessageType, interface{}) error
	hookOnce sync.Once
}

func NewDriver(deviceID string, scanner *modem.Scanner, receiver *modem.Receiver, sender *modem.Sender, autoStartOnScan bool) *Driver {
	return &Driver{
		deviceID:        deviceID,
		scanner:         scanner,
		receiver:        receiver,
		sender:          sender,
		autoStartOnScan: autoStartOnScan,
	}
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// hookEvents bridges receiver events onto the hub connection. Hooked
// once, no matter how many times the receiver is restarted.
func (d *Driver) hookEvents() {
	d.hookOnce.Do(func() {
		d.receiver.OnSmsReceived = func(dto modem.SmsReceivedDto) {
			dto.DeviceID = d.deviceID
			data, err := json.Marshal(dto)
			if err != nil {
				logger.Log.Errorf("Failed to marshal SMS event: %v", err)
				return
			}
			_ = d.publish(hub.MessageTypeSmsReceived, hub.SmsReceivedPayload{
				DeviceID: d.deviceID,
				SmsJson:  string(data),
			})
		}
		d.receiver.OnCallHangup = func(dto modem.CallHangupDto) {
			dto.DeviceID = d.deviceID
			data, err := json.Marshal(dto)
			if err != nil {
				logger.Log.Errorf("Failed to marshal hangup event: %v", err)
				return
			}
			_ = d.publish(hub.MessageTypeCallHangupRecord, hub.CallHangupPayload{
				DeviceID:   d.deviceID,
				HangupJson: string(data),
			})
		}
	})
}

// HandleScan acknowledges, streams incremental results while the scan
// runs, then reports completion plus the full result set.
func (d *Driver) HandleScan(ctx context.Context) {
	_ = d.publish(hub.MessageTypeScanAcknowledgment, hub.ScanAcknowledgmentPayload{
		DeviceID: d.deviceID,
		Message:  "scan started",
	})

	result := d.scanner.Scan(ctx, func(port modem.PortInfo) {
		data, err := json.Marshal(port)
		if err != nil {
			return
		}
		_ = d.publish(hub.MessageTypeComPortFound, hub.ComPortFoundPayload{
			DeviceID: d.deviceID,
			PortJson: string(data),
		})
	})

	_ = d.publish(hub.MessageTypeComPortScanCompleted, hub.ComPortScanCompletedPayload{
		DeviceID: d.deviceID,
		IsoTime:  result.ScanTime.Format(time.RFC3339),
	})

	if data, err := json.Marshal(result); err == nil {
		_ = d.publish(hub.MessageTypeComPortScanResult, hub.ComPortScanResultPayload{
			DeviceID:       d.deviceID,
			ScanResultJson: string(data),
		})
	}

	if d.autoStartOnScan {
		var ports []hub.ReceiverPortPayload
		for _, p := range result.Ports {
			if p.IsSmsModem && p.BaudRate > 0 && p.ModemInfo != nil && p.ModemInfo.HasSimCard {
				ports = append(ports, hub.ReceiverPortPayload{PortName: p.PortName, BaudRate: p.BaudRate})
			}
		}
		if len(ports) > 0 {
			logger.Log.Infof("Auto-starting SMS receiver on %d port(s) after scan", len(ports))
			d.HandleStartReceiver(ports)
		}
	}
}

func (d *Driver) HandleStartReceiver(ports []hub.ReceiverPortPayload) {
	d.hookEvents()
	specs := make([]modem.PortSpec, 0, len(ports))
	for _, p := range ports {
		specs = append(specs, modem.PortSpec{PortName: p.PortName, BaudRate: p.BaudRate})
	}
	if err := d.receiver.StartListening(specs...); err != nil {
		logger.Log.Errorf("Failed to start SMS receiver: %v", err)
	}
}

func (d *Driver) HandleStopReceiver(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.receiver.StopListening(ctx); err != nil {
		logger.Log.Warnf("SMS receiver stop incomplete: %v", err)
	}
}

func (d *Driver) HandleSendSms(ctx context.Context, p hub.SendSmsPayload) {
	ok, errMsg := d.sender.SendSms(ctx, p.ComPort, p.TargetNumber, p.MessageContent)
	status := model.SendStatusSuccess
	if !ok {
		status = model.SendStatusFailed
	}
	_ = d.publish(hub.MessageTypeSmsSendResult, hub.SmsSendResultPayload{
		RecordID:     p.RecordID,
		Status:       status,
		ErrorMessage: errMsg,
	})
}
