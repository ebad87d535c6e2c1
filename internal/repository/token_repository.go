package repository

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

// TokenRepository 刷新令牌存储（只存哈希）
type TokenRepository struct {
	DB *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

func (r *TokenRepository) Save(ctx context.Context, token *model.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(token).Error
}

func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, translate(err, util.ErrRefreshNotFound)
	}
	return &token, nil
}

func (r *TokenRepository) DeleteByHash(ctx context.Context, hash string) error {
	return r.DB.WithContext(ctx).Where("token_hash = ?", hash).Delete(&model.RefreshToken{}).Error
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.RefreshToken{}).Error
}

// DeleteExpired 删除过期令牌，返回删除数量
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
