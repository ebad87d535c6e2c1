package service

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strings"
	"unicode/utf8"
)

type NoteService struct {
	Notes       NoteStore
	Permissions *PermissionService
}

func NewNoteService(notes NoteStore, perms *PermissionService) *NoteService {
	return &NoteService{Notes: notes, Permissions: perms}
}

type NoteInput struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", util.Validationf("title is required")
	}
	if utf8.RuneCountInString(title) > 200 {
		return "", util.Validationf("title must be at most 200 characters")
	}
	return title, nil
}

func (s *NoteService) Create(ctx context.Context, userID uint, in NoteInput) (*model.Note, error) {
	if in.Title == nil {
		return nil, util.Validationf("title is required")
	}
	title, err := validateTitle(*in.Title)
	if err != nil {
		return nil, err
	}

	note := &model.Note{UserID: userID, Title: title}
	if in.Content != nil {
		note.Content = *in.Content
	}
	if err := s.Notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// load 读取笔记并校验权限
func (s *NoteService) load(ctx context.Context, id, userID uint, minimum model.Permission) (*model.Note, model.Permission, error) {
	note, err := s.Notes.FindByID(ctx, id)
	if err != nil {
		return nil, model.PermissionNone, err
	}
	perm, err := s.Permissions.Require(ctx, note, userID, minimum)
	if err != nil {
		return nil, perm, err
	}
	return note, perm, nil
}

func (s *NoteService) Get(ctx context.Context, id, userID uint) (*model.Note, model.Permission, error) {
	return s.load(ctx, id, userID, model.PermissionViewer)
}

func (s *NoteService) ListOwned(ctx context.Context, userID uint, limit, offset int) ([]model.Note, int64, error) {
	return s.Notes.ListByOwner(ctx, userID, limit, offset)
}

func (s *NoteService) ListSharedWithMe(ctx context.Context, userID uint, limit, offset int) ([]model.Note, int64, error) {
	return s.Notes.ListSharedWith(ctx, userID, limit, offset)
}

func (s *NoteService) Update(ctx context.Context, id, userID uint, in NoteInput) (*model.Note, error) {
	note, _, err := s.load(ctx, id, userID, model.PermissionEditor)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		note.Title = title
	}
	if in.Content != nil {
		note.Content = *in.Content
	}

	if err := s.Notes.Update(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, id, userID uint) error {
	if _, _, err := s.load(ctx, id, userID, model.PermissionOwner); err != nil {
		return err
	}
	return s.Notes.Delete(ctx, id)
}

func (s *NoteService) Share(ctx context.Context, id, actor, grantee uint, perm model.Permission) (*model.ShareGrant, error) {
	note, err := s.Notes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Permissions.Share(ctx, note, actor, grantee, perm)
}

func (s *NoteService) Unshare(ctx context.Context, id, actor, grantee uint) error {
	note, err := s.Notes.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.Permissions.Unshare(ctx, note, actor, grantee)
}

func (s *NoteService) ListShares(ctx context.Context, id, actor uint) ([]model.ShareGrant, error) {
	note, err := s.Notes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Permissions.ListGrants(ctx, note, actor)
}
