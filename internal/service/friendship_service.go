package service

import (
	"context"
	"errors"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"planora_backend/pkg/logger"

	"go.uber.org/zap"
)

type userExistence interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// FriendshipService 好友关系状态机：每对用户至多一条记录
// PENDING -> ACCEPTED / REJECTED，任意状态 -> BLOCKED
type FriendshipService struct {
	Repo     FriendshipStore
	Users    userExistence
	Notifier NotificationPublisher
}

func NewFriendshipService(repo FriendshipStore, users userExistence, notifier NotificationPublisher) *FriendshipService {
	if notifier == nil {
		notifier = NoopPublisher{}
	}
	return &FriendshipService{Repo: repo, Users: users, Notifier: notifier}
}

// Request a 向 b 发起好友请求；该用户对已有任何状态的记录都会拒绝
func (s *FriendshipService) Request(ctx context.Context, a, b uint) (*model.Friendship, error) {
	if a == b {
		return nil, util.Validationf("cannot befriend yourself")
	}

	exists, err := s.Users.Exists(ctx, b)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrUserNotFound
	}

	if _, err := s.Repo.FindByPair(ctx, a, b); err == nil {
		return nil, util.ErrConflict
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}

	f := &model.Friendship{
		RequesterID: a,
		AddresseeID: b,
		Status:      model.FriendshipPending,
	}
	// 并发请求由唯一索引兜底，返回 ErrConflict
	if err := s.Repo.Create(ctx, f); err != nil {
		return nil, err
	}

	publishQuietly(ctx, s.Notifier, Notification{
		Kind:    NotifyFriendRequest,
		UserID:  b,
		Payload: map[string]interface{}{"friendshipId": f.ID, "requesterId": a},
	})
	return f, nil
}

// pendingFor 取出 actor 作为接收方的待处理记录
func (s *FriendshipService) pendingFor(ctx context.Context, id, actor uint) (*model.Friendship, error) {
	f, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.Involves(actor) {
		return nil, util.ErrNotFound
	}
	if f.AddresseeID != actor {
		return nil, util.ErrPermissionDenied
	}
	if f.Status != model.FriendshipPending {
		return nil, util.ErrConflict
	}
	return f, nil
}

func (s *FriendshipService) Accept(ctx context.Context, id, actor uint) (*model.Friendship, error) {
	f, err := s.pendingFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	f.Status = model.FriendshipAccepted
	if err := s.Repo.Save(ctx, f); err != nil {
		return nil, err
	}

	publishQuietly(ctx, s.Notifier, Notification{
		Kind:    NotifyFriendAccepted,
		UserID:  f.RequesterID,
		Payload: map[string]interface{}{"friendshipId": f.ID, "addresseeId": actor},
	})
	return f, nil
}

func (s *FriendshipService) Reject(ctx context.Context, id, actor uint) (*model.Friendship, error) {
	f, err := s.pendingFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	f.Status = model.FriendshipRejected
	if err := s.Repo.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Remove 解除好友关系，任一方可操作，之后双方可以重新请求
func (s *FriendshipService) Remove(ctx context.Context, id, actor uint) error {
	f, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !f.Involves(actor) {
		return util.ErrNotFound
	}
	if f.Status != model.FriendshipAccepted {
		return util.ErrConflict
	}
	return s.Repo.Delete(ctx, f)
}

// Cancel 请求方撤回自己发出的待处理请求
func (s *FriendshipService) Cancel(ctx context.Context, id, actor uint) error {
	f, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !f.Involves(actor) {
		return util.ErrNotFound
	}
	if f.RequesterID != actor {
		return util.ErrPermissionDenied
	}
	if f.Status != model.FriendshipPending {
		return util.ErrConflict
	}
	return s.Repo.Delete(ctx, f)
}

// Dismiss 被拒绝的记录只能由拒绝方清除
func (s *FriendshipService) Dismiss(ctx context.Context, id, actor uint) error {
	f, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !f.Involves(actor) {
		return util.ErrNotFound
	}
	if f.AddresseeID != actor {
		return util.ErrPermissionDenied
	}
	if f.Status != model.FriendshipRejected {
		return util.ErrConflict
	}
	return s.Repo.Delete(ctx, f)
}

// Block 拉黑：无记录时直接创建 BLOCKED，有记录时直接转为 BLOCKED
// 对方已拉黑自己时不能覆盖
func (s *FriendshipService) Block(ctx context.Context, actor, target uint) (*model.Friendship, error) {
	if actor == target {
		return nil, util.Validationf("cannot block yourself")
	}

	f, err := s.Repo.FindByPair(ctx, actor, target)
	if errors.Is(err, util.ErrNotFound) {
		exists, err := s.Users.Exists(ctx, target)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, util.ErrUserNotFound
		}

		blocker := actor
		f = &model.Friendship{
			RequesterID: actor,
			AddresseeID: target,
			Status:      model.FriendshipBlocked,
			BlockedBy:   &blocker,
		}
		if err := s.Repo.Create(ctx, f); err != nil {
			return nil, err
		}
		return f, nil
	}
	if err != nil {
		return nil, err
	}

	if f.Status == model.FriendshipBlocked {
		if f.BlockedBy != nil && *f.BlockedBy == actor {
			return f, nil
		}
		return nil, util.ErrConflict
	}

	blocker := actor
	f.Status = model.FriendshipBlocked
	f.BlockedBy = &blocker
	if err := s.Repo.Save(ctx, f); err != nil {
		return nil, err
	}

	logger.Log.Info("Friendship blocked", zap.Uint("actor", actor), zap.Uint("target", target))
	return f, nil
}

// Unblock 只有拉黑方可以解除，解除后删除记录
func (s *FriendshipService) Unblock(ctx context.Context, actor, target uint) error {
	f, err := s.Repo.FindByPair(ctx, actor, target)
	if err != nil {
		return err
	}
	if f.Status != model.FriendshipBlocked {
		return util.ErrConflict
	}
	if f.BlockedBy == nil || *f.BlockedBy != actor {
		return util.ErrPermissionDenied
	}
	return s.Repo.Delete(ctx, f)
}

// CanCommunicate 当且仅当存在记录且状态为 ACCEPTED
// REST 消息接口与实时网关共用这一判断
func (s *FriendshipService) CanCommunicate(ctx context.Context, a, b uint) (bool, error) {
	f, err := s.AcceptedFriendship(ctx, a, b)
	return f != nil, err
}

// AcceptedFriendship 返回两人之间已接受的记录，没有时返回 nil
func (s *FriendshipService) AcceptedFriendship(ctx context.Context, a, b uint) (*model.Friendship, error) {
	if a == b {
		return nil, nil
	}
	f, err := s.Repo.FindByPair(ctx, a, b)
	if errors.Is(err, util.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if f.Status != model.FriendshipAccepted {
		return nil, nil
	}
	return f, nil
}

// PendingRequest 严格按方向查找 requester -> addressee 的待处理请求，没有时返回 nil
func (s *FriendshipService) PendingRequest(ctx context.Context, requester, addressee uint) (*model.Friendship, error) {
	f, err := s.Repo.FindByPair(ctx, requester, addressee)
	if errors.Is(err, util.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if f.Status != model.FriendshipPending || f.RequesterID != requester || f.AddresseeID != addressee {
		return nil, nil
	}
	return f, nil
}

func (s *FriendshipService) FriendIDsOf(ctx context.Context, userID uint) ([]uint, error) {
	return s.Repo.FriendIDsCached(ctx, userID)
}

func (s *FriendshipService) ListFriends(ctx context.Context, userID uint, query string) ([]model.User, error) {
	return s.Repo.ListFriends(ctx, userID, query)
}

func (s *FriendshipService) ListRequests(ctx context.Context, userID uint, limit, offset int) ([]model.Friendship, int64, error) {
	return s.Repo.ListRequests(ctx, userID, limit, offset)
}

func (s *FriendshipService) ListPending(ctx context.Context, userID uint) ([]model.Friendship, error) {
	return s.Repo.ListPending(ctx, userID)
}
