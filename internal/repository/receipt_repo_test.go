package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/stretchr/testify/require"
)

func TestMarkReadIsIdempotent(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	repo := NewReceiptRepository(db)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.MarkRead(alice.ID, model.MessageTypeSms, 42))
	}

	var count int64
	db.Model(&model.MessageReadReceipt{}).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestMarkReadConcurrentYieldsOneRow(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	repo := NewReceiptRepository(db)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.MarkRead(alice.ID, model.MessageTypeHangup, 7)
		}()
	}
	wg.Wait()

	var count int64
	db.Model(&model.MessageReadReceipt{}).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestUnreadCounts(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	seedAllocation(t, db, alice.ID, "D1", "COM3", "COM4")

	now := time.Now().UTC()
	var ids []uint
	for _, port := range []string{"COM3", "COM3", "COM3", "COM4", "COM4"} {
		m := seedSms(t, db, "D1", port, "+1", now)
		ids = append(ids, m.ID)
	}

	vis, err := LoadVisibility(db, alice.ID, false)
	require.NoError(t, err)

	smsRepo := NewSMSRepository(db)
	receipts := NewReceiptRepository(db)

	unread, err := smsRepo.CountUnread(vis, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5, unread)

	require.NoError(t, receipts.MarkRead(alice.ID, model.MessageTypeSms, ids[0]))
	require.NoError(t, receipts.MarkRead(alice.ID, model.MessageTypeSms, ids[1]))

	unread, err = smsRepo.CountUnread(vis, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, unread)

	// Marking one of them again changes nothing.
	require.NoError(t, receipts.MarkRead(alice.ID, model.MessageTypeSms, ids[0]))
	unread, err = smsRepo.CountUnread(vis, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, unread)
}

func TestMarkAllReadWithPortFilter(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	seedAllocation(t, db, alice.ID, "D1", "COM3", "COM4")

	now := time.Now().UTC()
	for _, port := range []string{"COM3", "COM3", "COM4"} {
		seedSms(t, db, "D1", port, "+1", now)
	}

	vis, err := LoadVisibility(db, alice.ID, false)
	require.NoError(t, err)

	smsRepo := NewSMSRepository(db)
	receipts := NewReceiptRepository(db)

	ids, err := smsRepo.VisibleIDs(vis, "", "COM3")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	marked, err := receipts.MarkAllRead(alice.ID, model.MessageTypeSms, ids)
	require.NoError(t, err)
	require.Equal(t, 2, marked)

	// Second run marks nothing new.
	marked, err = receipts.MarkAllRead(alice.ID, model.MessageTypeSms, ids)
	require.NoError(t, err)
	require.Zero(t, marked)

	unread, err := smsRepo.CountUnread(vis, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread, "only the COM4 message stays unread")
}

func TestReadSetEnrichment(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleUser)
	receipts := NewReceiptRepository(db)

	require.NoError(t, receipts.MarkRead(alice.ID, model.MessageTypeSms, 1))
	require.NoError(t, receipts.MarkRead(alice.ID, model.MessageTypeSms, 3))
	// A hangup receipt for the same id must not leak into the SMS set.
	require.NoError(t, receipts.MarkRead(alice.ID, model.MessageTypeHangup, 2))

	set, err := receipts.ReadSet(alice.ID, model.MessageTypeSms, []uint{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, map[uint]bool{1: true, 3: true}, set)
}
