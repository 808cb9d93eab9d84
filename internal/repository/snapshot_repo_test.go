package repository

import (
	"testing"

	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/modem"
	"github.com/stretchr/testify/require"
)

func TestSnapshotUpsertIsOverwrite(t *testing.T) {
	db := testDB(t)
	repo := NewSnapshotRepository(db)

	require.NoError(t, repo.Upsert("D1", []modem.PortInfo{
		{PortName: "COM3", IsSmsModem: true, BaudRate: 115200},
		{PortName: "COM4"},
	}))
	require.NoError(t, repo.Upsert("D1", []modem.PortInfo{
		{PortName: "COM5", IsSmsModem: true, BaudRate: 9600},
	}))

	var count int64
	db.Model(&model.DeviceComSnapshot{}).Where("device_id = ?", "D1").Count(&count)
	require.EqualValues(t, 1, count, "at most one snapshot per device")

	ports, err := repo.Ports("D1")
	require.NoError(t, err)
	require.Len(t, ports, 1)
	require.Equal(t, "COM5", ports[0].PortName)
}

func TestSnapshotUpsertRewritesDeviceID(t *testing.T) {
	db := testDB(t)
	repo := NewSnapshotRepository(db)

	require.NoError(t, repo.Upsert("D1", []modem.PortInfo{
		{DeviceID: "SOMETHING-ELSE", PortName: "COM3"},
	}))

	ports, err := repo.Ports("D1")
	require.NoError(t, err)
	require.Equal(t, "D1", ports[0].DeviceID, "path device id wins over the body's")
}

func TestSnapshotUpsertPortMergesByPortName(t *testing.T) {
	db := testDB(t)
	repo := NewSnapshotRepository(db)

	require.NoError(t, repo.UpsertPort("D1", modem.PortInfo{PortName: "COM3", IsSmsModem: true}))
	require.NoError(t, repo.UpsertPort("D1", modem.PortInfo{PortName: "COM4"}))
	require.NoError(t, repo.UpsertPort("D1", modem.PortInfo{
		PortName: "com3",
		IsSmsModem: true,
		ModemInfo:  &modem.ModemInfo{Operator: "Chunghwa Telecom"},
	}))

	ports, err := repo.Ports("D1")
	require.NoError(t, err)
	require.Len(t, ports, 2, "second COM3 emission upserts, not appends")
}

func TestOperatorForStampsFromSnapshot(t *testing.T) {
	db := testDB(t)
	repo := NewSnapshotRepository(db)

	require.NoError(t, repo.Upsert("D1", []modem.PortInfo{
		{PortName: "COM3", ModemInfo: &modem.ModemInfo{Operator: "Far EasTone"}},
		{PortName: "COM4"},
	}))

	require.Equal(t, "Far EasTone", repo.OperatorFor("D1", "com3"))
	require.Empty(t, repo.OperatorFor("D1", "COM4"), "port without modem info has no operator")
	require.Empty(t, repo.OperatorFor("D1", "COM9"))
	require.Empty(t, repo.OperatorFor("D9", "COM3"), "unknown device has no snapshot")
}
