package repository

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

// History 两人之间的消息，按时间倒序；beforeID 非空时只取更早的消息
func (r *MessageRepository) History(ctx context.Context, a, b uint, beforeID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	db := r.DB.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)

	if beforeID != "" {
		sub := r.DB.Model(&model.Message{}).Select("created_at").Where("id = ?", beforeID)
		db = db.Where("created_at < (?)", sub)
	}

	err := db.Order("created_at DESC").Limit(limit).Find(&msgs).Error
	return msgs, err
}

// MarkRead 把 senderID 发给 receiverID、不晚于 upToID 的未读消息标记为已读
// MySQL 不允许 UPDATE 子查询引用同一张表，先取锚点消息的时间
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID uint, upToID string, at time.Time) (int64, error) {
	var anchor model.Message
	err := r.DB.WithContext(ctx).
		Select("id", "created_at").
		Where("id = ? AND sender_id = ? AND receiver_id = ?", upToID, senderID, receiverID).
		First(&anchor).Error
	if err != nil {
		return 0, translate(err, util.ErrNotFound)
	}

	res := r.DB.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read_at IS NULL AND created_at <= ?", senderID, receiverID, anchor.CreatedAt).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}
