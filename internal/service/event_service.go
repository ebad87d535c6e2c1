package service

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"time"
)

type EventService struct {
	Events      EventStore
	Permissions *PermissionService
}

func NewEventService(events EventStore, perms *PermissionService) *EventService {
	return &EventService{Events: events, Permissions: perms}
}

type EventInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartAt     *time.Time `json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
	AllDay      *bool      `json:"allDay"`
}

func (in EventInput) apply(e *model.CalendarEvent) error {
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return err
		}
		e.Title = title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.StartAt != nil {
		e.StartAt = *in.StartAt
	}
	if in.EndAt != nil {
		e.EndAt = *in.EndAt
	}
	if in.AllDay != nil {
		e.AllDay = *in.AllDay
	}

	if e.StartAt.IsZero() {
		return util.Validationf("startAt is required")
	}
	if e.EndAt.IsZero() {
		e.EndAt = e.StartAt
	}
	if e.EndAt.Before(e.StartAt) {
		return util.Validationf("endAt must not be before startAt")
	}
	return nil
}

func (s *EventService) Create(ctx context.Context, userID uint, in EventInput) (*model.CalendarEvent, error) {
	if in.Title == nil {
		return nil, util.Validationf("title is required")
	}
	event := &model.CalendarEvent{UserID: userID}
	if err := in.apply(event); err != nil {
		return nil, err
	}
	if err := s.Events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) load(ctx context.Context, id, userID uint, minimum model.Permission) (*model.CalendarEvent, model.Permission, error) {
	event, err := s.Events.FindByID(ctx, id)
	if err != nil {
		return nil, model.PermissionNone, err
	}
	perm, err := s.Permissions.Require(ctx, event, userID, minimum)
	if err != nil {
		return nil, perm, err
	}
	return event, perm, nil
}

func (s *EventService) Get(ctx context.Context, id, userID uint) (*model.CalendarEvent, model.Permission, error) {
	return s.load(ctx, id, userID, model.PermissionViewer)
}

// ListOwned 按时间范围过滤，零值表示不限制
func (s *EventService) ListOwned(ctx context.Context, userID uint, from, to time.Time) ([]model.CalendarEvent, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, util.Validationf("invalid time range")
	}
	return s.Events.ListByOwner(ctx, userID, from, to)
}

func (s *EventService) ListSharedWithMe(ctx context.Context, userID uint, from, to time.Time) ([]model.CalendarEvent, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, util.Validationf("invalid time range")
	}
	return s.Events.ListSharedWith(ctx, userID, from, to)
}

func (s *EventService) Update(ctx context.Context, id, userID uint, in EventInput) (*model.CalendarEvent, error) {
	event, _, err := s.load(ctx, id, userID, model.PermissionEditor)
	if err != nil {
		return nil, err
	}
	if err := in.apply(event); err != nil {
		return nil, err
	}
	if err := s.Events.Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, id, userID uint) error {
	if _, _, err := s.load(ctx, id, userID, model.PermissionOwner); err != nil {
		return err
	}
	return s.Events.Delete(ctx, id)
}

func (s *EventService) Share(ctx context.Context, id, actor, grantee uint, perm model.Permission) (*model.ShareGrant, error) {
	event, err := s.Events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Permissions.Share(ctx, event, actor, grantee, perm)
}

func (s *EventService) Unshare(ctx context.Context, id, actor, grantee uint) error {
	event, err := s.Events.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.Permissions.Unshare(ctx, event, actor, grantee)
}

func (s *EventService) ListShares(ctx context.Context, id, actor uint) ([]model.ShareGrant, error) {
	event, err := s.Events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Permissions.ListGrants(ctx, event, actor)
}
