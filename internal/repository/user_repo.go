package repository

import (
	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.db.Where("is_deleted = ?", false).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByUserName(userName string) (*model.User, error) {
	var user model.User
	err := r.db.Where("user_name = ? AND is_deleted = ?", userName, false).First(&user).Error
	return &user, err
}

func (r *UserRepository) List() ([]model.User, error) {
	var users []model.User
	err := r.db.Where("is_deleted = ?", false).Order("id").Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// SoftDelete hides a user from default queries without removing the row.
func (r *UserRepository) SoftDelete(id uint) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Update("is_deleted", true).Error
}

func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Count(&count).Error
	return count, err
}
