package repository

import (
	"encoding/json"

	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type AllocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) Create(a *model.ComAllocation) error {
	return r.db.Create(a).Error
}

func (r *AllocationRepository) Update(a *model.ComAllocation) error {
	return r.db.Save(a).Error
}

func (r *AllocationRepository) FindByID(id uint) (*model.ComAllocation, error) {
	var a model.ComAllocation
	err := r.db.Where("is_deleted = ?", false).First(&a, id).Error
	return &a, err
}

func (r *AllocationRepository) FindByUser(userID uint) ([]model.ComAllocation, error) {
	var list []model.ComAllocation
	err := r.db.Where("user_id = ? AND is_deleted = ?", userID, false).Find(&list).Error
	return list, err
}

func (r *AllocationRepository) List() ([]model.ComAllocation, error) {
	var list []model.ComAllocation
	err := r.db.Where("is_deleted = ?", false).Order("id").Find(&list).Error
	return list, err
}

func (r *AllocationRepository) SoftDelete(id uint) error {
	return r.db.Model(&model.ComAllocation{}).Where("id = ?", id).Update("is_deleted", true).Error
}

// ComPorts decodes the allocation's JSON port list.
func ComPorts(a *model.ComAllocation) []string {
	var ports []string
	if a.ComPortsJson == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(a.ComPortsJson), &ports); err != nil {
		return nil
	}
	return ports
}

// EncodeComPorts serializes a port list for storage.
func EncodeComPorts(ports []string) string {
	b, err := json.Marshal(ports)
	if err != nil {
		return "[]"
	}
	return string(b)
}
