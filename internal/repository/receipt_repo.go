package repository

import (
	"time"

	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// MarkRead records that the user has seen one message. Duplicate marks
// hit the unique (userId, messageType, sourceId) index and are treated
// as success.
func (r *ReceiptRepository) MarkRead(userID uint, messageType string, sourceID uint) error {
	receipt := model.MessageReadReceipt{
		UserID:      userID,
		MessageType: messageType,
		SourceID:    sourceID,
		ReadTimeUtc: time.Now().UTC(),
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error
}

// MarkAllRead inserts receipts for every id in visibleIDs the user has
// not read yet, atomically.
func (r *ReceiptRepository) MarkAllRead(userID uint, messageType string, visibleIDs []uint) (int, error) {
	if len(visibleIDs) == 0 {
		return 0, nil
	}

	read, err := r.ReadSet(userID, messageType, visibleIDs)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var receipts []model.MessageReadReceipt
	for _, id := range visibleIDs {
		if read[id] {
			continue
		}
		receipts = append(receipts, model.MessageReadReceipt{
			UserID:      userID,
			MessageType: messageType,
			SourceID:    id,
			ReadTimeUtc: now,
		})
	}
	if len(receipts) == 0 {
		return 0, nil
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts).Error
	})
	if err != nil {
		return 0, err
	}
	return len(receipts), nil
}

// ReadSet fetches which of the given ids the user has read. Fetched
// once per page, not per row.
func (r *ReceiptRepository) ReadSet(userID uint, messageType string, ids []uint) (map[uint]bool, error) {
	set := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return set, nil
	}
	var sourceIDs []uint
	err := r.db.Model(&model.MessageReadReceipt{}).
		Where("user_id = ? AND message_type = ? AND source_id IN ?", userID, messageType, ids).
		Pluck("source_id", &sourceIDs).Error
	if err != nil {
		return nil, err
	}
	for _, id := range sourceIDs {
		set[id] = true
	}
	return set, nil
}
