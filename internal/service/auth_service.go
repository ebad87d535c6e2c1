package service

import (
	"context"
	"errors"
	"net/mail"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService struct {
	Users  UserStore
	Tokens *TokenService
	now    func() time.Time
}

func NewAuthService(users UserStore, tokens *TokenService) *AuthService {
	return &AuthService{Users: users, Tokens: tokens, now: time.Now}
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", util.Validationf("invalid email")
	}
	return email, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return util.Validationf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, *TokenPair, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return nil, nil, util.Validationf("name must be 1-100 characters")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, nil, err
	}

	if _, err := s.Users.FindByEmail(ctx, email); err == nil {
		return nil, nil, util.ErrEmailRegistered
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	user := &model.User{
		Name:      name,
		Email:     email,
		Password:  string(hashedPassword),
		Role:      model.RoleUser,
		LastLogin: &now,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.Tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	user, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, nil, util.ErrBadCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, util.ErrBadCredentials
	}

	now := s.now()
	if err := s.Users.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, nil, err
	}
	if err := s.Users.SetPresence(ctx, user.ID, true, now); err != nil {
		return nil, nil, err
	}
	user.LastLogin = &now
	user.IsOnline = true
	user.LastSeen = &now

	pair, err := s.Tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout 标记离线并撤销该用户的全部刷新令牌
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	if err := s.Users.SetPresence(ctx, userID, false, s.now()); err != nil {
		return err
	}
	return s.Tokens.RevokeAll(ctx, userID)
}

// ChangePassword 修改密码后所有会话的刷新令牌失效
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return util.ErrBadCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	return s.Tokens.RevokeAll(ctx, userID)
}
