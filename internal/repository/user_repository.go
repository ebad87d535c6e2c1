package repository

import (
	"context"
	"errors"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.DB.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrEmailRegistered
	}
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, util.ErrUserNotFound)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, translate(err, util.ErrUserNotFound)
	}
	return &user, nil
}

func (r *UserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("password", hash).Error
}

func (r *UserRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
}

// SetPresence 更新在线状态与最后在线时间
func (r *UserRepository) SetPresence(ctx context.Context, id uint, online bool, lastSeen time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": lastSeen}).Error
}

func (r *UserRepository) List(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.User{})
	if query != "" {
		searchTerm := "%" + query + "%"
		db = db.Where("name LIKE ? OR email LIKE ?", searchTerm, searchTerm)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error
	return users, total, err
}

// DeleteCascade 在一个事务中删除用户及其全部数据
func (r *UserRepository) DeleteCascade(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 用户拥有资源上的共享记录
		for kind, table := range resourceTables {
			sub := tx.Table(table).Select("id").Where("user_id = ?", id)
			if err := tx.Where("resource_kind = ? AND resource_id IN (?)", kind, sub).
				Delete(&model.ShareGrant{}).Error; err != nil {
				return err
			}
		}
		// 别人共享给该用户的记录
		if err := tx.Where("user_id = ?", id).Delete(&model.ShareGrant{}).Error; err != nil {
			return err
		}

		steps := []struct {
			model interface{}
			where string
			args  []interface{}
		}{
			{&model.Note{}, "user_id = ?", []interface{}{id}},
			{&model.CalendarEvent{}, "user_id = ?", []interface{}{id}},
			{&model.Reminder{}, "user_id = ?", []interface{}{id}},
			{&model.Friendship{}, "requester_id = ? OR addressee_id = ?", []interface{}{id, id}},
			{&model.RefreshToken{}, "user_id = ?", []interface{}{id}},
			{&model.Message{}, "sender_id = ? OR receiver_id = ?", []interface{}{id, id}},
		}
		for _, s := range steps {
			if err := tx.Unscoped().Where(s.where, s.args...).Delete(s.model).Error; err != nil {
				return err
			}
		}

		res := tx.Unscoped().Delete(&model.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrUserNotFound
		}
		return nil
	})
}
