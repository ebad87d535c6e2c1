package repository

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type EventRepository struct {
	DB *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.CalendarEvent) error {
	return r.DB.WithContext(ctx).Create(event).Error
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (*model.CalendarEvent, error) {
	var event model.CalendarEvent
	if err := r.DB.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, translate(err, util.ErrNotFound)
	}
	return &event, nil
}

// ListByOwner 时间范围可选，零值表示不限制
func (r *EventRepository) ListByOwner(ctx context.Context, userID uint, from, to time.Time) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	db := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	db = withinRange(db, from, to)
	err := db.Order("start_at ASC").Find(&events).Error
	return events, err
}

func (r *EventRepository) ListSharedWith(ctx context.Context, userID uint, from, to time.Time) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	db := r.DB.WithContext(ctx)
	q := db.Where("id IN (?)", sharedWith(db, model.KindEvent, userID))
	q = withinRange(q, from, to)
	err := q.Order("start_at ASC").Find(&events).Error
	return events, err
}

func withinRange(db *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		db = db.Where("end_at >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("start_at <= ?", to)
	}
	return db
}

func (r *EventRepository) Update(ctx context.Context, event *model.CalendarEvent) error {
	return r.DB.WithContext(ctx).Model(event).
		Select("title", "description", "location", "start_at", "end_at", "all_day").
		Updates(event).Error
}

func (r *EventRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteGrantsTx(tx, model.KindEvent, id); err != nil {
			return err
		}
		return tx.Delete(&model.CalendarEvent{}, id).Error
	})
}
