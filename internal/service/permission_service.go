package service

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
)

// PermissionService 笔记、日程、提醒共用的权限判断
type PermissionService struct {
	Shares   ShareStore
	Users    userExistence
	Notifier NotificationPublisher
}

func NewPermissionService(shares ShareStore, users userExistence, notifier NotificationPublisher) *PermissionService {
	if notifier == nil {
		notifier = NoopPublisher{}
	}
	return &PermissionService{Shares: shares, Users: users, Notifier: notifier}
}

// Resolve 所有者为 OWNER，否则取共享记录中的权限，都没有则拒绝
func (s *PermissionService) Resolve(ctx context.Context, r model.Shareable, userID uint) (model.Permission, error) {
	if userID != 0 && r.OwnerUserID() == userID {
		return model.PermissionOwner, nil
	}
	perm, err := s.Shares.PermissionFor(ctx, r.ResourceKind(), r.ResourceID(), userID)
	if err != nil {
		return model.PermissionNone, err
	}
	if perm.Rank() == 0 {
		return model.PermissionNone, util.ErrPermissionDenied
	}
	return perm, nil
}

// Require 解析出的权限低于 minimum 时返回 ErrPermissionDenied
func (s *PermissionService) Require(ctx context.Context, r model.Shareable, userID uint, minimum model.Permission) (model.Permission, error) {
	perm, err := s.Resolve(ctx, r, userID)
	if err != nil {
		return model.PermissionNone, err
	}
	if !perm.AtLeast(minimum) {
		return perm, util.ErrPermissionDenied
	}
	return perm, nil
}

func (s *PermissionService) requireOwner(ctx context.Context, r model.Shareable, actor uint) error {
	perm, err := s.Resolve(ctx, r, actor)
	if err != nil {
		return err
	}
	if perm != model.PermissionOwner {
		return util.ErrPermissionDenied
	}
	return nil
}

// Share 授予或更新权限（只能是 EDITOR/VIEWER），同一用户不会产生重复记录
func (s *PermissionService) Share(ctx context.Context, r model.Shareable, actor, grantee uint, perm model.Permission) (*model.ShareGrant, error) {
	if err := s.requireOwner(ctx, r, actor); err != nil {
		return nil, err
	}
	if grantee == r.OwnerUserID() {
		return nil, util.Validationf("cannot share a resource with its owner")
	}
	if !perm.Grantable() {
		return nil, util.Validationf("permission must be EDITOR or VIEWER")
	}

	exists, err := s.Users.Exists(ctx, grantee)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrUserNotFound
	}

	grant := &model.ShareGrant{
		ResourceKind: r.ResourceKind(),
		ResourceID:   r.ResourceID(),
		UserID:       grantee,
		Permission:   perm,
	}
	if err := s.Shares.Upsert(ctx, grant); err != nil {
		return nil, err
	}

	publishQuietly(ctx, s.Notifier, Notification{
		Kind:   NotifyResourceShared,
		UserID: grantee,
		Payload: map[string]interface{}{
			"resourceKind": r.ResourceKind(),
			"resourceId":   r.ResourceID(),
			"ownerId":      actor,
			"permission":   perm,
		},
	})
	return grant, nil
}

func (s *PermissionService) Unshare(ctx context.Context, r model.Shareable, actor, grantee uint) error {
	if err := s.requireOwner(ctx, r, actor); err != nil {
		return err
	}
	return s.Shares.Remove(ctx, r.ResourceKind(), r.ResourceID(), grantee)
}

func (s *PermissionService) ListGrants(ctx context.Context, r model.Shareable, actor uint) ([]model.ShareGrant, error) {
	if err := s.requireOwner(ctx, r, actor); err != nil {
		return nil, err
	}
	return s.Shares.List(ctx, r.ResourceKind(), r.ResourceID())
}
