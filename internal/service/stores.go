package service

import (
	"context"
	"planora_backend/internal/model"
	"time"
)

// 服务层依赖的存储接口，由 repository 包中的 gorm 实现提供

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Exists(ctx context.Context, id uint) (bool, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	TouchLogin(ctx context.Context, id uint, at time.Time) error
	SetPresence(ctx context.Context, id uint, online bool, lastSeen time.Time) error
	List(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error)
	DeleteCascade(ctx context.Context, id uint) error
}

type TokenStore interface {
	Save(ctx context.Context, token *model.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	DeleteByHash(ctx context.Context, hash string) error
	DeleteAllForUser(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type FriendshipStore interface {
	Create(ctx context.Context, f *model.Friendship) error
	FindByID(ctx context.Context, id uint) (*model.Friendship, error)
	FindByPair(ctx context.Context, a, b uint) (*model.Friendship, error)
	Save(ctx context.Context, f *model.Friendship) error
	Delete(ctx context.Context, f *model.Friendship) error
	FriendIDsCached(ctx context.Context, userID uint) ([]uint, error)
	ListFriends(ctx context.Context, userID uint, query string) ([]model.User, error)
	ListRequests(ctx context.Context, userID uint, limit, offset int) ([]model.Friendship, int64, error)
	ListPending(ctx context.Context, userID uint) ([]model.Friendship, error)
}

type ShareStore interface {
	PermissionFor(ctx context.Context, kind model.ResourceKind, resourceID, userID uint) (model.Permission, error)
	Upsert(ctx context.Context, grant *model.ShareGrant) error
	Remove(ctx context.Context, kind model.ResourceKind, resourceID, userID uint) error
	List(ctx context.Context, kind model.ResourceKind, resourceID uint) ([]model.ShareGrant, error)
}

type NoteStore interface {
	Create(ctx context.Context, note *model.Note) error
	FindByID(ctx context.Context, id uint) (*model.Note, error)
	ListByOwner(ctx context.Context, userID uint, limit, offset int) ([]model.Note, int64, error)
	ListSharedWith(ctx context.Context, userID uint, limit, offset int) ([]model.Note, int64, error)
	Update(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, id uint) error
}

type EventStore interface {
	Create(ctx context.Context, event *model.CalendarEvent) error
	FindByID(ctx context.Context, id uint) (*model.CalendarEvent, error)
	ListByOwner(ctx context.Context, userID uint, from, to time.Time) ([]model.CalendarEvent, error)
	ListSharedWith(ctx context.Context, userID uint, from, to time.Time) ([]model.CalendarEvent, error)
	Update(ctx context.Context, event *model.CalendarEvent) error
	Delete(ctx context.Context, id uint) error
}

type ReminderStore interface {
	Create(ctx context.Context, reminder *model.Reminder) error
	FindByID(ctx context.Context, id uint) (*model.Reminder, error)
	ListByOwner(ctx context.Context, userID uint, includeDone bool) ([]model.Reminder, error)
	ListSharedWith(ctx context.Context, userID uint, includeDone bool) ([]model.Reminder, error)
	Update(ctx context.Context, reminder *model.Reminder) error
	Delete(ctx context.Context, id uint) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	History(ctx context.Context, a, b uint, beforeID string, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, receiverID, senderID uint, upToID string, at time.Time) (int64, error)
}
