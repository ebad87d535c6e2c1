package service

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"time"
)

type ReminderService struct {
	Reminders   ReminderStore
	Permissions *PermissionService
}

func NewReminderService(reminders ReminderStore, perms *PermissionService) *ReminderService {
	return &ReminderService{Reminders: reminders, Permissions: perms}
}

type ReminderInput struct {
	Title    *string    `json:"title"`
	Note     *string    `json:"note"`
	RemindAt *time.Time `json:"remindAt"`
	Done     *bool      `json:"done"`
}

func (in ReminderInput) apply(r *model.Reminder) error {
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return err
		}
		r.Title = title
	}
	if in.Note != nil {
		r.Note = *in.Note
	}
	if in.RemindAt != nil {
		r.RemindAt = *in.RemindAt
	}
	if in.Done != nil {
		r.Done = *in.Done
	}
	if r.RemindAt.IsZero() {
		return util.Validationf("remindAt is required")
	}
	return nil
}

func (s *ReminderService) Create(ctx context.Context, userID uint, in ReminderInput) (*model.Reminder, error) {
	if in.Title == nil {
		return nil, util.Validationf("title is required")
	}
	reminder := &model.Reminder{UserID: userID}
	if err := in.apply(reminder); err != nil {
		return nil, err
	}
	if err := s.Reminders.Create(ctx, reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

func (s *ReminderService) load(ctx context.Context, id, userID uint, minimum model.Permission) (*model.Reminder, model.Permission, error) {
	reminder, err := s.Reminders.FindByID(ctx, id)
	if err != nil {
		return nil, model.PermissionNone, err
	}
	perm, err := s.Permissions.Require(ctx, reminder, userID, minimum)
	if err != nil {
		return nil, perm, err
	}
	return reminder, perm, nil
}

func (s *ReminderService) Get(ctx context.Context, id, userID uint) (*model.Reminder, model.Permission, error) {
	return s.load(ctx, id, userID, model.PermissionViewer)
}

func (s *ReminderService) ListOwned(ctx context.Context, userID uint, includeDone bool) ([]model.Reminder, error) {
	return s.Reminders.ListByOwner(ctx, userID, includeDone)
}

func (s *ReminderService) ListSharedWithMe(ctx context.Context, userID uint, includeDone bool) ([]model.Reminder, error) {
	return s.Reminders.ListSharedWith(ctx, userID, includeDone)
}

func (s *ReminderService) Update(ctx context.Context, id, userID uint, in ReminderInput) (*model.Reminder, error) {
	reminder, _, err := s.load(ctx, id, userID, model.PermissionEditor)
	if err != nil {
		return nil, err
	}
	if err := in.apply(reminder); err != nil {
		return nil, err
	}
	if err := s.Reminders.Update(ctx, reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

func (s *ReminderService) Delete(ctx context.Context, id, userID uint) error {
	if _, _, err := s.load(ctx, id, userID, model.PermissionOwner); err != nil {
		return err
	}
	return s.Reminders.Delete(ctx, id)
}

func (s *ReminderService) Share(ctx context.Context, id, actor, grantee uint, perm model.Permission) (*model.ShareGrant, error) {
	reminder, err := s.Reminders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Permissions.Share(ctx, reminder, actor, grantee, perm)
}

func (s *ReminderService) Unshare(ctx context.Context, id, actor, grantee uint) error {
	reminder, err := s.Reminders.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.Permissions.Unshare(ctx, reminder, actor, grantee)
}

func (s *ReminderService) ListShares(ctx context.Context, id, actor uint) ([]model.ShareGrant, error) {
	reminder, err := s.Reminders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Permissions.ListGrants(ctx, reminder, actor)
}
