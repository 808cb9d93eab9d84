package repository

import (
	"time"

	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type SMSRepository struct {
	db *gorm.DB
}

func NewSMSRepository(db *gorm.DB) *SMSRepository {
	return &SMSRepository{db: db}
}

func (r *SMSRepository) Create(sms *model.SmsMessage) error {
	return r.db.Create(sms).Error
}

// SmsQuery carries the list filters applied after visibility.
type SmsQuery struct {
	DeviceID       string
	ComPort        string
	SenderNumber   string
	StartTime      *time.Time
	EndTime        *time.Time
	IncludeDeleted bool
	PageNumber     int
	PageSize       int
}

// visibleScope applies the caller's visibility: non-admin users see an
// SMS when both its deviceId and its comPort fall inside their
// allocation union.
func (r *SMSRepository) visibleScope(vis Visibility, includeDeleted bool) *gorm.DB {
	q := r.db.Model(&model.SmsMessage{})
	if !vis.Admin || !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if !vis.Admin {
		q = q.Where("UPPER(TRIM(device_id)) IN ?", vis.AllowedDeviceIDs).
			Where("UPPER(TRIM(com_port)) IN ?", vis.AllowedComPorts)
	}
	return q
}

func applySmsFilters(q *gorm.DB, f SmsQuery) *gorm.DB {
	if f.DeviceID != "" {
		q = q.Where("UPPER(TRIM(device_id)) = ?", NormalizeKey(f.DeviceID))
	}
	if f.ComPort != "" {
		q = q.Where("UPPER(TRIM(com_port)) = ?", NormalizeKey(f.ComPort))
	}
	if f.SenderNumber != "" {
		q = q.Where("sender_number LIKE ?", "%"+f.SenderNumber+"%")
	}
	if f.StartTime != nil {
		q = q.Where("received_time >= ?", *f.StartTime)
	}
	if f.EndTime != nil {
		q = q.Where("received_time <= ?", *f.EndTime)
	}
	return q
}

// ListVisible returns one page of messages the caller may see, newest
// first.
func (r *SMSRepository) ListVisible(vis Visibility, f SmsQuery) (Page, []model.SmsMessage, error) {
	pageNumber, pageSize := ClampPage(f.PageNumber, f.PageSize)
	page := Page{PageNumber: pageNumber, PageSize: pageSize, Data: []model.SmsMessage{}}

	if vis.Empty() {
		return page, nil, nil
	}

	q := applySmsFilters(r.visibleScope(vis, f.IncludeDeleted), f)

	if err := q.Count(&page.TotalCount).Error; err != nil {
		return page, nil, err
	}

	var rows []model.SmsMessage
	err := q.Order("received_time DESC").
		Limit(pageSize).
		Offset((pageNumber - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return page, nil, err
	}
	page.Data = rows
	return page, rows, nil
}

// VisibleIDs lists ids of visible, non-deleted messages under an
// optional (deviceId, comPort) constraint. Used by mark-all-read.
func (r *SMSRepository) VisibleIDs(vis Visibility, deviceID, comPort string) ([]uint, error) {
	if vis.Empty() {
		return nil, nil
	}
	q := applySmsFilters(r.visibleScope(vis, false), SmsQuery{DeviceID: deviceID, ComPort: comPort})
	var ids []uint
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// CountUnread counts visible non-deleted messages without a read
// receipt for the user.
func (r *SMSRepository) CountUnread(vis Visibility, userID uint) (int64, error) {
	if vis.Empty() {
		return 0, nil
	}
	sub := r.db.Model(&model.MessageReadReceipt{}).
		Select("source_id").
		Where("user_id = ? AND message_type = ?", userID, model.MessageTypeSms)
	var count int64
	err := r.visibleScope(vis, false).Where("id NOT IN (?)", sub).Count(&count).Error
	return count, err
}

func (r *SMSRepository) FindByID(id uint) (*model.SmsMessage, error) {
	var sms model.SmsMessage
	err := r.db.First(&sms, id).Error
	return &sms, err
}

func (r *SMSRepository) SoftDelete(id uint) error {
	return r.db.Model(&model.SmsMessage{}).Where("id = ?", id).Update("is_deleted", true).Error
}

func (r *SMSRepository) HardDelete(id uint) error {
	return r.db.Unscoped().Delete(&model.SmsMessage{}, id).Error
}
