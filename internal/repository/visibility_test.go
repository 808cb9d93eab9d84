package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.ComAllocation{},
		&model.DeviceComSnapshot{},
		&model.SmsMessage{},
		&model.CallHangupRecord{},
		&model.MessageReadReceipt{},
		&model.SmsSendRecord{},
		&model.Note{},
		&model.Webhook{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) *model.User {
	t.Helper()
	u := &model.User{UserName: name, PasswordHash: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedAllocation(t *testing.T, db *gorm.DB, userID uint, deviceID string, ports ...string) {
	t.Helper()
	a := &model.ComAllocation{UserID: userID, DeviceID: deviceID, ComPortsJson: EncodeComPorts(ports)}
	require.NoError(t, db.Create(a).Error)
}

func seedSms(t *testing.T, db *gorm.DB, deviceID, comPort, sender string, at time.Time) *model.SmsMessage {
	t.Helper()
	m := &model.SmsMessage{
		DeviceID:       deviceID,
		ComPort:        comPort,
		SenderNumber:   sender,
		MessageContent: "body",
		ReceivedTime:   at,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func TestVisibilityFilterRestrictsToAllocations(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	seedAllocation(t, db, alice.ID, "D1", "COM3", "COM5")
	seedAllocation(t, db, alice.ID, "D2", "COM7")

	now := time.Now().UTC()
	visible1 := seedSms(t, db, "D1", "COM3", "+1", now)
	seedSms(t, db, "D1", "COM4", "+2", now)
	visible2 := seedSms(t, db, "D2", "COM7", "+3", now)
	seedSms(t, db, "D3", "COM3", "+4", now)

	vis, err := LoadVisibility(db, alice.ID, false)
	require.NoError(t, err)

	repo := NewSMSRepository(db)
	page, rows, err := repo.ListVisible(vis, SmsQuery{PageNumber: 1, PageSize: 50})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.TotalCount)

	got := map[uint]bool{}
	for _, r := range rows {
		got[r.ID] = true
	}
	require.True(t, got[visible1.ID], "(D1,COM3) must be visible")
	require.True(t, got[visible2.ID], "(D2,COM7) must be visible")
}

func TestVisibilityEmptyAllocationsYieldEmptyPage(t *testing.T) {
	db := testDB(t)
	bob := seedUser(t, db, "bob", model.RoleUser)
	seedSms(t, db, "D1", "COM3", "+1", time.Now().UTC())

	vis, err := LoadVisibility(db, bob.ID, false)
	require.NoError(t, err)
	require.True(t, vis.Empty())

	repo := NewSMSRepository(db)
	page, rows, err := repo.ListVisible(vis, SmsQuery{DeviceID: "D1", SenderNumber: "+1"})
	require.NoError(t, err)
	require.Zero(t, page.TotalCount)
	require.Empty(t, rows)
}

func TestVisibilityNormalizesCaseAndWhitespace(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	seedAllocation(t, db, alice.ID, " d1 ", " com3 ")

	m := seedSms(t, db, "D1", "Com3", "+1", time.Now().UTC())

	vis, err := LoadVisibility(db, alice.ID, false)
	require.NoError(t, err)

	repo := NewSMSRepository(db)
	_, rows, err := repo.ListVisible(vis, SmsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, m.ID, rows[0].ID)
}

func TestAdminSeesAllIncludingDeleted(t *testing.T) {
	db := testDB(t)
	admin := seedUser(t, db, "root", model.RoleAdmin)

	m := seedSms(t, db, "D1", "COM3", "+1", time.Now().UTC())
	repo := NewSMSRepository(db)
	require.NoError(t, repo.SoftDelete(m.ID))

	vis, err := LoadVisibility(db, admin.ID, true)
	require.NoError(t, err)

	_, rows, err := repo.ListVisible(vis, SmsQuery{})
	require.NoError(t, err)
	require.Empty(t, rows, "soft-deleted rows hidden by default")

	_, rows, err = repo.ListVisible(vis, SmsQuery{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestHangupVisibilityRequiresDeviceAndPort(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	seedAllocation(t, db, alice.ID, "D1", "COM3")

	now := time.Now().UTC()
	mk := func(device, port string) {
		require.NoError(t, db.Create(&model.CallHangupRecord{
			DeviceID: device, ComPort: port, HangupTime: now, Reason: model.HangupReasonAuto,
		}).Error)
	}
	mk("D1", "COM3") // visible
	mk("D1", "COM9") // port not allocated
	mk("D9", "COM3") // device not allocated

	vis, err := LoadVisibility(db, alice.ID, false)
	require.NoError(t, err)

	repo := NewHangupRepository(db)
	page, rows, err := repo.ListVisible(vis, HangupQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.TotalCount)
	require.Len(t, rows, 1)
	require.Equal(t, "D1", rows[0].DeviceID)
	require.Equal(t, "COM3", rows[0].ComPort)
}

func TestListOrderingAndPaging(t *testing.T) {
	db := testDB(t)
	admin := seedUser(t, db, "root", model.RoleAdmin)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedSms(t, db, "D1", "COM3", "+1", base.Add(time.Duration(i)*time.Hour))
	}

	vis, _ := LoadVisibility(db, admin.ID, true)
	repo := NewSMSRepository(db)

	page, rows, err := repo.ListVisible(vis, SmsQuery{PageNumber: 1, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 5, page.TotalCount)
	require.Len(t, rows, 2)
	require.True(t, rows[0].ReceivedTime.After(rows[1].ReceivedTime), "newest first")

	// Page size clamps to the maximum.
	_, pageSize := ClampPage(1, 100000)
	require.Equal(t, 200, pageSize)
	pageNumber, pageSize := ClampPage(-3, 0)
	require.Equal(t, 1, pageNumber)
	require.Equal(t, 20, pageSize)
}
