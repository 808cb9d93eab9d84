package repository

import (
	"encoding/json"

	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/modem"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert overwrites the single snapshot for a device with the given
// port list. DeviceID inside each port is rewritten to the snapshot's.
func (r *SnapshotRepository) Upsert(deviceID string, ports []modem.PortInfo) error {
	for i := range ports {
		ports[i].DeviceID = deviceID
	}
	data, err := json.Marshal(ports)
	if err != nil {
		return err
	}
	snap := model.DeviceComSnapshot{DeviceID: deviceID, DataJson: string(data)}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data_json", "update_time"}),
	}).Create(&snap).Error
}

// UpsertPort merges one port into the device snapshot, keyed by
// portName (case-insensitive). Used for the scanner's incremental
// emissions.
func (r *SnapshotRepository) UpsertPort(deviceID string, port modem.PortInfo) error {
	ports, err := r.Ports(deviceID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	port.DeviceID = deviceID

	replaced := false
	for i := range ports {
		if NormalizeKey(ports[i].PortName) == NormalizeKey(port.PortName) {
			ports[i] = port
			replaced = true
			break
		}
	}
	if !replaced {
		ports = append(ports, port)
	}
	return r.Upsert(deviceID, ports)
}

func (r *SnapshotRepository) Find(deviceID string) (*model.DeviceComSnapshot, error) {
	var snap model.DeviceComSnapshot
	err := r.db.Where("device_id = ?", deviceID).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Ports decodes the snapshot's port list; a missing snapshot yields
// gorm.ErrRecordNotFound with a nil list.
func (r *SnapshotRepository) Ports(deviceID string) ([]modem.PortInfo, error) {
	snap, err := r.Find(deviceID)
	if err != nil {
		return nil, err
	}
	var ports []modem.PortInfo
	if snap.DataJson != "" {
		if err := json.Unmarshal([]byte(snap.DataJson), &ports); err != nil {
			return nil, err
		}
	}
	return ports, nil
}

// OperatorFor looks up the operator recorded for one port of a device,
// for stamping onto messages at ingest time.
func (r *SnapshotRepository) OperatorFor(deviceID, portName string) string {
	ports, err := r.Ports(deviceID)
	if err != nil {
		return ""
	}
	for i := range ports {
		if NormalizeKey(ports[i].PortName) == NormalizeKey(portName) && ports[i].ModemInfo != nil {
			return ports[i].ModemInfo.Operator
		}
	}
	return ""
}
