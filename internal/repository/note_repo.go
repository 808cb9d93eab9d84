package repository

import (
	"github.com/pccr10001/smsfleet/internal/model"
	"gorm.io/gorm"
)

type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(note *model.Note) error {
	return r.db.Create(note).Error
}

func (r *NoteRepository) Update(note *model.Note) error {
	return r.db.Save(note).Error
}

func (r *NoteRepository) FindByID(id uint) (*model.Note, error) {
	var note model.Note
	err := r.db.Where("is_deleted = ?", false).First(&note, id).Error
	return &note, err
}

func (r *NoteRepository) ListByUser(userID uint, pageNumber, pageSize int) (Page, error) {
	pageNumber, pageSize = ClampPage(pageNumber, pageSize)
	page := Page{PageNumber: pageNumber, PageSize: pageSize, Data: []model.Note{}}

	q := r.db.Model(&model.Note{}).Where("user_id = ? AND is_deleted = ?", userID, false)
	if err := q.Count(&page.TotalCount).Error; err != nil {
		return page, err
	}
	var rows []model.Note
	err := q.Order("update_time DESC").Limit(pageSize).Offset((pageNumber - 1) * pageSize).Find(&rows).Error
	if err != nil {
		return page, err
	}
	page.Data = rows
	return page, nil
}

func (r *NoteRepository) SoftDelete(id uint) error {
	return r.db.Model(&model.Note{}).Where("id = ?", id).Update("is_deleted", true).Error
}
