package service

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strings"
	"time"
	"unicode/utf8"
)

type UserService struct {
	Users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{Users: users}
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	return s.Users.FindByID(ctx, userID)
}

type UpdateProfileInput struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*model.User, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || utf8.RuneCountInString(name) > 100 {
			return nil, util.Validationf("name must be 1-100 characters")
		}
		user.Name = name
	}
	if in.Avatar != nil {
		if len(*in.Avatar) > 255 {
			return nil, util.Validationf("avatar url too long")
		}
		user.Avatar = *in.Avatar
	}

	if err := s.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetPresence 由实时网关在首个连接建立/最后一个连接断开时调用
func (s *UserService) SetPresence(ctx context.Context, userID uint, online bool, at time.Time) error {
	return s.Users.SetPresence(ctx, userID, online, at)
}

// Search 添加好友时按昵称或邮箱搜索
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.User{}, nil
	}
	users, _, err := s.Users.List(ctx, query, limit, 0)
	return users, err
}

func (s *UserService) ListUsers(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	return s.Users.List(ctx, query, limit, offset)
}

// DeleteUser 管理员删除用户及其全部数据，不能删除自己
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID uint) error {
	if actorID == userID {
		return util.Validationf("cannot delete your own account here")
	}
	return s.Users.DeleteCascade(ctx, userID)
}
