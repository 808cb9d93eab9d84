package hub

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/modem"
	"github.com/pccr10001/smsfleet/internal/notify"
	"github.com/pccr10001/smsfleet/internal/repository"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

// Ingestor persists agent events as they arrive. All persistence is
// best effort from the hub's point of view: a failure here never
// suppresses the broadcast.
type Ingestor struct {
	smsRepo      *repository.SMSRepository
	hangupRepo   *repository.HangupRepository
	snapshotRepo *repository.SnapshotRepository
	sendRepo     *repository.SendRecordRepository
	webhooks     *notify.WebhookService
}

func NewIngestor(
	smsRepo *repository.SMSRepository,
	hangupRepo *repository.HangupRepository,
	snapshotRepo *repository.SnapshotRepository,
	sendRepo *repository.SendRecordRepository,
	webhooks *notify.WebhookService,
) *Ingestor {
	return &Ingestor{
		smsRepo:      smsRepo,
		hangupRepo:   hangupRepo,
		snapshotRepo: snapshotRepo,
		sendRepo:     sendRepo,
		webhooks:     webhooks,
	}
}

// SmsReceived persists an inbound SMS, stamping the operator from the
// device's snapshot when one is recorded for the port.
func (in *Ingestor) SmsReceived(p SmsReceivedPayload) {
	var dto modem.SmsReceivedDto
	if err := json.Unmarshal([]byte(p.SmsJson), &dto); err != nil {
		logger.Log.Warnf("Undecodable SMS payload from %s: %v", p.DeviceID, err)
		return
	}

	row := model.SmsMessage{
		DeviceID:       p.DeviceID,
		ComPort:        dto.ComPort,
		SenderNumber:   dto.SenderNumber,
		MessageContent: dto.MessageContent,
		ReceivedTime:   dto.ReceivedTime.UTC(),
		SmsTimestamp:   dto.SmsTimestamp,
		Operator:       in.snapshotRepo.OperatorFor(p.DeviceID, dto.ComPort),
	}
	if row.ReceivedTime.IsZero() {
		row.ReceivedTime = time.Now().UTC()
	}

	if err := in.smsRepo.Create(&row); err != nil {
		logger.Log.Errorf("Failed to persist SMS from %s/%s: %v", p.DeviceID, dto.ComPort, err)
		return
	}
	in.webhooks.Dispatch(&row)
}

// CallHangup persists a hangup record. Records without a comPort are
// ignored.
func (in *Ingestor) CallHangup(p CallHangupPayload) {
	var dto modem.CallHangupDto
	if err := json.Unmarshal([]byte(p.HangupJson), &dto); err != nil {
		logger.Log.Warnf("Undecodable hangup payload from %s: %v", p.DeviceID, err)
		return
	}
	if strings.TrimSpace(dto.ComPort) == "" {
		logger.Log.Debugf("Hangup without comPort from %s, skipping persist", p.DeviceID)
		return
	}

	row := model.CallHangupRecord{
		DeviceID:     p.DeviceID,
		ComPort:      dto.ComPort,
		CallerNumber: dto.CallerNumber,
		HangupTime:   dto.HangupTime.UTC(),
		Reason:       dto.Reason,
		RawLine:      dto.RawLine,
	}
	if row.HangupTime.IsZero() {
		row.HangupTime = time.Now().UTC()
	}
	if row.Reason == "" {
		row.Reason = model.HangupReasonUnknown
	}

	if err := in.hangupRepo.Create(&row); err != nil {
		logger.Log.Errorf("Failed to persist hangup from %s/%s: %v", p.DeviceID, dto.ComPort, err)
	}
}

// PortFound merges one incremental scan emission into the snapshot.
func (in *Ingestor) PortFound(p ComPortFoundPayload) {
	var port modem.PortInfo
	if err := json.Unmarshal([]byte(p.PortJson), &port); err != nil {
		logger.Log.Warnf("Undecodable port payload from %s: %v", p.DeviceID, err)
		return
	}
	if err := in.snapshotRepo.UpsertPort(p.DeviceID, port); err != nil {
		logger.Log.Errorf("Failed to upsert port %s for %s: %v", port.PortName, p.DeviceID, err)
	}
}

// ScanResult overwrites the device snapshot with a completed scan.
func (in *Ingestor) ScanResult(p ComPortScanResultPayload) {
	var result modem.ScanResult
	if err := json.Unmarshal([]byte(p.ScanResultJson), &result); err != nil {
		logger.Log.Warnf("Undecodable scan result from %s: %v", p.DeviceID, err)
		return
	}
	if err := in.snapshotRepo.Upsert(p.DeviceID, result.Ports); err != nil {
		logger.Log.Errorf("Failed to store snapshot for %s: %v", p.DeviceID, err)
	}
}

// SendResult records the outcome of a send transaction.
func (in *Ingestor) SendResult(p SmsSendResultPayload) {
	if p.RecordID == 0 {
		return
	}
	if err := in.sendRepo.UpdateStatus(p.RecordID, p.Status, p.ErrorMessage); err != nil {
		logger.Log.Errorf("Failed to update send record %d: %v", p.RecordID, err)
	}
}
