package repository

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"

	"gorm.io/gorm"
)

type ReminderRepository struct {
	DB *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{DB: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	return r.DB.WithContext(ctx).Create(reminder).Error
}

func (r *ReminderRepository) FindByID(ctx context.Context, id uint) (*model.Reminder, error) {
	var reminder model.Reminder
	if err := r.DB.WithContext(ctx).First(&reminder, id).Error; err != nil {
		return nil, translate(err, util.ErrNotFound)
	}
	return &reminder, nil
}

func (r *ReminderRepository) ListByOwner(ctx context.Context, userID uint, includeDone bool) ([]model.Reminder, error) {
	var reminders []model.Reminder
	db := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if !includeDone {
		db = db.Where("done = ?", false)
	}
	err := db.Order("remind_at ASC").Find(&reminders).Error
	return reminders, err
}

func (r *ReminderRepository) ListSharedWith(ctx context.Context, userID uint, includeDone bool) ([]model.Reminder, error) {
	var reminders []model.Reminder
	db := r.DB.WithContext(ctx)
	q := db.Where("id IN (?)", sharedWith(db, model.KindReminder, userID))
	if !includeDone {
		q = q.Where("done = ?", false)
	}
	err := q.Order("remind_at ASC").Find(&reminders).Error
	return reminders, err
}

func (r *ReminderRepository) Update(ctx context.Context, reminder *model.Reminder) error {
	return r.DB.WithContext(ctx).Model(reminder).
		Select("title", "note", "remind_at", "done").
		Updates(reminder).Error
}

func (r *ReminderRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteGrantsTx(tx, model.KindReminder, id); err != nil {
			return err
		}
		return tx.Delete(&model.Reminder{}, id).Error
	})
}
