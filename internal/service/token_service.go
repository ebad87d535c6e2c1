package service

import (
	"context"
	"errors"
	"planora_backend/internal/config"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"planora_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// TokenPair 登录/注册后下发的令牌
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type userLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// TokenService 访问令牌无状态校验，刷新令牌以哈希持久化、可撤销
type TokenService struct {
	Store TokenStore
	Users userLookup
	cfg   config.JWTConfig
	now   func() time.Time
}

func NewTokenService(store TokenStore, users userLookup, cfg config.JWTConfig) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AccessTTLMinutes <= 0 {
		cfg.AccessTTLMinutes = 15
	}
	if cfg.RefreshTTLDays <= 0 {
		cfg.RefreshTTLDays = 7
	}
	return &TokenService{Store: store, Users: users, cfg: cfg, now: time.Now}, nil
}

func (s *TokenService) WithNowFunc(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue 签发访问令牌和刷新令牌，刷新令牌只保存哈希
func (s *TokenService) Issue(ctx context.Context, user *model.User) (*TokenPair, error) {
	now := s.now()

	access, accessExp, err := util.GenerateAccessJWT(user, s.cfg.AccessSecret, now, s.cfg.AccessTTL())
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := util.GenerateRefreshJWT(user.ID, s.cfg.RefreshSecret, now, s.cfg.RefreshTTL())
	if err != nil {
		return nil, err
	}

	record := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: util.HashToken(refresh),
		ExpiresAt: refreshExp,
	}
	if err := s.Store.Save(ctx, record); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess 只校验签名与过期时间，不查库
func (s *TokenService) VerifyAccess(token string) (*util.Claims, error) {
	if token == "" {
		return nil, util.ErrUnauthenticated
	}
	return util.ParseJWT(token, s.cfg.AccessSecret, util.TokenTypeAccess, s.now)
}

// Refresh 用刷新令牌换取新的访问令牌，刷新令牌本身不轮换
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if refreshToken == "" {
		return "", time.Time{}, util.ErrUnauthenticated
	}

	hash := util.HashToken(refreshToken)
	record, err := s.Store.FindByHash(ctx, hash)
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	if record.Expired(now) {
		s.deleteExpired(ctx, hash, record.UserID)
		return "", time.Time{}, util.ErrTokenExpired
	}

	claims, err := util.ParseJWT(refreshToken, s.cfg.RefreshSecret, util.TokenTypeRefresh, s.now)
	if err != nil {
		if errors.Is(err, util.ErrTokenExpired) {
			s.deleteExpired(ctx, hash, record.UserID)
		}
		return "", time.Time{}, err
	}
	if claims.UserID != record.UserID {
		return "", time.Time{}, util.ErrTokenInvalid
	}

	user, err := s.Users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return "", time.Time{}, util.ErrTokenInvalid
		}
		return "", time.Time{}, err
	}

	return util.GenerateAccessJWT(user, s.cfg.AccessSecret, now, s.cfg.AccessTTL())
}

func (s *TokenService) deleteExpired(ctx context.Context, hash string, userID uint) {
	if err := s.Store.DeleteByHash(ctx, hash); err != nil {
		logger.Log.Warn("Failed to delete expired refresh token", zap.Uint("userId", userID), zap.Error(err))
	}
}

// Revoke 撤销单个刷新令牌
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Store.DeleteByHash(ctx, util.HashToken(refreshToken))
}

// RevokeAll 撤销用户的全部刷新令牌（登出、修改密码）
func (s *TokenService) RevokeAll(ctx context.Context, userID uint) error {
	return s.Store.DeleteAllForUser(ctx, userID)
}

func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.Store.DeleteExpired(ctx, s.now())
}

// StartPurge 定期清理过期刷新令牌
func (s *TokenService) StartPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				logger.Log.Error("Failed to purge refresh tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("Purged expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}
