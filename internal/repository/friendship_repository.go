package repository

import (
	"context"
	"fmt"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	friendCacheTTL      = 24 * time.Hour
	friendCacheEmptyTTL = 5 * time.Minute
)

// FriendshipRepository 每对用户一条关系记录，好友ID列表缓存在 Redis Set 中
type FriendshipRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewFriendshipRepository(db *gorm.DB, rdb *redis.Client) *FriendshipRepository {
	return &FriendshipRepository{DB: db, Redis: rdb}
}

func friendCacheKey(userID uint) string {
	return fmt.Sprintf("planora:friends:%d", userID)
}

// invalidate 清除双方的关系缓存
func (r *FriendshipRepository) invalidate(ctx context.Context, f *model.Friendship) {
	if r.Redis == nil {
		return
	}
	r.Redis.Del(ctx, friendCacheKey(f.RequesterID), friendCacheKey(f.AddresseeID))
}

func (r *FriendshipRepository) Create(ctx context.Context, f *model.Friendship) error {
	f.PairKey = model.PairKeyOf(f.RequesterID, f.AddresseeID)
	if err := r.DB.WithContext(ctx).Create(f).Error; err != nil {
		return translate(err, util.ErrNotFound)
	}
	r.invalidate(ctx, f)
	return nil
}

func (r *FriendshipRepository) FindByID(ctx context.Context, id uint) (*model.Friendship, error) {
	var f model.Friendship
	if err := r.DB.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, translate(err, util.ErrNotFound)
	}
	return &f, nil
}

// FindByPair 按无序用户对查找，不区分方向
func (r *FriendshipRepository) FindByPair(ctx context.Context, a, b uint) (*model.Friendship, error) {
	var f model.Friendship
	err := r.DB.WithContext(ctx).Where("pair_key = ?", model.PairKeyOf(a, b)).Take(&f).Error
	if err != nil {
		return nil, translate(err, util.ErrNotFound)
	}
	return &f, nil
}

// Save 更新方向、状态与拉黑人
func (r *FriendshipRepository) Save(ctx context.Context, f *model.Friendship) error {
	err := r.DB.WithContext(ctx).Model(f).
		Select("requester_id", "addressee_id", "status", "blocked_by").
		Updates(f).Error
	if err != nil {
		return err
	}
	r.invalidate(ctx, f)
	return nil
}

func (r *FriendshipRepository) Delete(ctx context.Context, f *model.Friendship) error {
	if err := r.DB.WithContext(ctx).Delete(&model.Friendship{}, f.ID).Error; err != nil {
		return err
	}
	r.invalidate(ctx, f)
	return nil
}

// FriendIDs 已接受关系的另一方 ID
func (r *FriendshipRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var rows []model.Friendship
	err := r.DB.WithContext(ctx).
		Select("requester_id", "addressee_id").
		Where("(requester_id = ? OR addressee_id = ?) AND status = ?", userID, userID, model.FriendshipAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Counterparty(userID))
	}
	return ids, nil
}

// FriendIDsCached 获取好友 ID 列表 (带缓存)
func (r *FriendshipRepository) FriendIDsCached(ctx context.Context, userID uint) ([]uint, error) {
	if r.Redis == nil {
		return r.FriendIDs(ctx, userID)
	}

	key := friendCacheKey(userID)
	cached, err := r.Redis.SMembers(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		ids := make([]uint, 0, len(cached))
		for _, s := range cached {
			id, _ := strconv.ParseUint(s, 10, 64)
			if id > 0 {
				ids = append(ids, uint(id))
			}
		}
		return ids, nil
	}

	// 缓存失效，回源数据库
	ids, err := r.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	pipe := r.Redis.Pipeline()
	if len(ids) > 0 {
		members := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			members = append(members, id)
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, friendCacheTTL)
	} else {
		// 防止缓存穿透：存占位值 0 并设置短过期时间
		pipe.SAdd(ctx, key, 0)
		pipe.Expire(ctx, key, friendCacheEmptyTTL)
	}
	pipe.Exec(ctx)
	return ids, nil
}

func (r *FriendshipRepository) ListFriends(ctx context.Context, userID uint, query string) ([]model.User, error) {
	var friends []model.User
	db := r.DB.WithContext(ctx).
		Joins("JOIN friendships ON (friendships.requester_id = users.id AND friendships.addressee_id = ?) OR (friendships.addressee_id = users.id AND friendships.requester_id = ?)", userID, userID).
		Where("friendships.status = ?", model.FriendshipAccepted)

	if query != "" {
		searchTerm := "%" + query + "%"
		db = db.Where("(users.name LIKE ? OR users.email LIKE ?)", searchTerm, searchTerm)
	}

	err := db.Order("users.name ASC").Find(&friends).Error
	return friends, err
}

// ListRequests 用户发出或收到的所有非拉黑记录
func (r *FriendshipRepository) ListRequests(ctx context.Context, userID uint, limit, offset int) ([]model.Friendship, int64, error) {
	var reqs []model.Friendship
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("(requester_id = ? OR addressee_id = ?) AND status IN ?", userID, userID,
			[]model.FriendshipStatus{model.FriendshipPending, model.FriendshipRejected})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Requester").Preload("Addressee").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, total, err
}

// ListPending 收到的待处理请求
func (r *FriendshipRepository) ListPending(ctx context.Context, userID uint) ([]model.Friendship, error) {
	var reqs []model.Friendship
	err := r.DB.WithContext(ctx).Preload("Requester").
		Where("addressee_id = ? AND status = ?", userID, model.FriendshipPending).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}
