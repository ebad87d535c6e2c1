package repository

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"

	"gorm.io/gorm"
)

type NoteRepository struct {
	DB *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	return r.DB.WithContext(ctx).Create(note).Error
}

func (r *NoteRepository) FindByID(ctx context.Context, id uint) (*model.Note, error) {
	var note model.Note
	if err := r.DB.WithContext(ctx).First(&note, id).Error; err != nil {
		return nil, translate(err, util.ErrNotFound)
	}
	return &note, nil
}

func (r *NoteRepository) ListByOwner(ctx context.Context, userID uint, limit, offset int) ([]model.Note, int64, error) {
	var notes []model.Note
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.Note{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&notes).Error
	return notes, total, err
}

func (r *NoteRepository) ListSharedWith(ctx context.Context, userID uint, limit, offset int) ([]model.Note, int64, error) {
	var notes []model.Note
	var total int64

	db := r.DB.WithContext(ctx)
	q := db.Model(&model.Note{}).Where("id IN (?)", sharedWith(db, model.KindNote, userID))
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&notes).Error
	return notes, total, err
}

// Update 只更新内容字段，is_shared 由共享仓库维护
func (r *NoteRepository) Update(ctx context.Context, note *model.Note) error {
	return r.DB.WithContext(ctx).Model(note).Select("title", "content").Updates(note).Error
}

func (r *NoteRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteGrantsTx(tx, model.KindNote, id); err != nil {
			return err
		}
		return tx.Delete(&model.Note{}, id).Error
	})
}
