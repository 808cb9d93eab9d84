package repository

import (
	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type SendRecordRepository struct {
	db *gorm.DB
}

func NewSendRecordRepository(db *gorm.DB) *SendRecordRepository {
	return &SendRecordRepository{db: db}
}

func (r *SendRecordRepository) Create(rec *model.SmsSendRecord) error {
	return r.db.Create(rec).Error
}

func (r *SendRecordRepository) FindByID(id uint) (*model.SmsSendRecord, error) {
	var rec model.SmsSendRecord
	err := r.db.First(&rec, id).Error
	return &rec, err
}

// UpdateStatus records the outcome of the single AT-level attempt.
func (r *SendRecordRepository) UpdateStatus(id uint, status, errorMessage string) error {
	return r.db.Model(&model.SmsSendRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error_message": errorMessage}).Error
}

func (r *SendRecordRepository) List(pageNumber, pageSize int) (Page, error) {
	pageNumber, pageSize = ClampPage(pageNumber, pageSize)
	page := Page{PageNumber: pageNumber, PageSize: pageSize, Data: []model.SmsSendRecord{}}

	q := r.db.Model(&model.SmsSendRecord{})
	if err := q.Count(&page.TotalCount).Error; err != nil {
		return page, err
	}
	var rows []model.SmsSendRecord
	err := q.Order("create_time DESC").Limit(pageSize).Offset((pageNumber - 1) * pageSize).Find(&rows).Error
	if err != nil {
		return page, err
	}
	page.Data = rows
	return page, nil
}
