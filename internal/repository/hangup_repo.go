package repository

import (
	"time"

	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type HangupRepository struct {
	db *gorm.DB
}

func NewHangupRepository(db *gorm.DB) *HangupRepository {
	return &HangupRepository{db: db}
}

func (r *HangupRepository) Create(rec *model.CallHangupRecord) error {
	return r.db.Create(rec).Error
}

type HangupQuery struct {
	DeviceID       string
	ComPort        string
	CallerNumber   string
	StartTime      *time.Time
	EndTime        *time.Time
	IncludeDeleted bool
	PageNumber     int
	PageSize       int
}

// visibleScope applies the caller's visibility: non-admin users see a
// hangup when both its deviceId and its comPort fall inside their
// allocation union.
func (r *HangupRepository) visibleScope(vis Visibility, includeDeleted bool) *gorm.DB {
	q := r.db.Model(&model.CallHangupRecord{})
	if !vis.Admin || !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if !vis.Admin {
		q = q.Where("UPPER(TRIM(device_id)) IN ?", vis.AllowedDeviceIDs).
			Where("UPPER(TRIM(com_port)) IN ?", vis.AllowedComPorts)
	}
	return q
}

func applyHangupFilters(q *gorm.DB, f HangupQuery) *gorm.DB {
	if f.DeviceID != "" {
		q = q.Where("UPPER(TRIM(device_id)) = ?", NormalizeKey(f.DeviceID))
	}
	if f.ComPort != "" {
		q = q.Where("UPPER(TRIM(com_port)) = ?", NormalizeKey(f.ComPort))
	}
	if f.CallerNumber != "" {
		q = q.Where("caller_number LIKE ?", "%"+f.CallerNumber+"%")
	}
	if f.StartTime != nil {
		q = q.Where("hangup_time >= ?", *f.StartTime)
	}
	if f.EndTime != nil {
		q = q.Where("hangup_time <= ?", *f.EndTime)
	}
	return q
}

func (r *HangupRepository) ListVisible(vis Visibility, f HangupQuery) (Page, []model.CallHangupRecord, error) {
	pageNumber, pageSize := ClampPage(f.PageNumber, f.PageSize)
	page := Page{PageNumber: pageNumber, PageSize: pageSize, Data: []model.CallHangupRecord{}}

	if vis.Empty() {
		return page, nil, nil
	}

	q := applyHangupFilters(r.visibleScope(vis, f.IncludeDeleted), f)

	if err := q.Count(&page.TotalCount).Error; err != nil {
		return page, nil, err
	}

	var rows []model.CallHangupRecord
	err := q.Order("hangup_time DESC").
		Limit(pageSize).
		Offset((pageNumber - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return page, nil, err
	}
	page.Data = rows
	return page, rows, nil
}

func (r *HangupRepository) VisibleIDs(vis Visibility, deviceID, comPort string) ([]uint, error) {
	if vis.Empty() {
		return nil, nil
	}
	q := applyHangupFilters(r.visibleScope(vis, false), HangupQuery{DeviceID: deviceID, ComPort: comPort})
	var ids []uint
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func (r *HangupRepository) CountUnread(vis Visibility, userID uint) (int64, error) {
	if vis.Empty() {
		return 0, nil
	}
	sub := r.db.Model(&model.MessageReadReceipt{}).
		Select("source_id").
		Where("user_id = ? AND message_type = ?", userID, model.MessageTypeHangup)
	var count int64
	err := r.visibleScope(vis, false).Where("id NOT IN (?)", sub).Count(&count).Error
	return count, err
}

func (r *HangupRepository) SoftDelete(id uint) error {
	return r.db.Model(&model.CallHangupRecord{}).Where("id = ?", id).Update("is_deleted", true).Error
}

func (r *HangupRepository) HardDelete(id uint) error {
	return r.db.Unscoped().Delete(&model.CallHangupRecord{}, id).Error
}
