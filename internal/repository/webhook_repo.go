package repository

import (
	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *model.Webhook) error {
	return r.db.Create(webhook).Error
}

func (r *WebhookRepository) List() ([]model.Webhook, error) {
	var list []model.Webhook
	err := r.db.Order("id").Find(&list).Error
	return list, err
}

// FindMatching returns enabled webhooks for a device, filtered to
// those bound to the given port or to no port at all.
func (r *WebhookRepository) FindMatching(deviceID, comPort string) ([]model.Webhook, error) {
	var list []model.Webhook
	err := r.db.Where("device_id = ? AND enabled = ?", deviceID, true).Find(&list).Error
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, wh := range list {
		if wh.ComPort == "" || NormalizeKey(wh.ComPort) == NormalizeKey(comPort) {
			out = append(out, wh)
		}
	}
	return out, nil
}

func (r *WebhookRepository) Delete(id uint) error {
	return r.db.Delete(&model.Webhook{}, id).Error
}
