package service

import (
	"context"
	"errors"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"testing"
)

type noteFixture struct {
	users    *inMemoryUserStore
	shares   *inMemoryShareStore
	notifier *recordingPublisher
	perms    *PermissionService
	notes    *NoteService
	owner    uint
	grantee  uint
	stranger uint
}

func newNoteFixture() *noteFixture {
	users := newInMemoryUserStore()
	shares := newInMemoryShareStore()
	notifier := &recordingPublisher{}
	perms := NewPermissionService(shares, users, notifier)
	f := &noteFixture{
		users:    users,
		shares:   shares,
		notifier: notifier,
		perms:    perms,
		notes:    NewNoteService(newInMemoryNoteStore(shares), perms),
	}
	f.owner = users.seed("Owner")
	f.grantee = users.seed("Grantee")
	f.stranger = users.seed("Stranger")
	return f
}

func strPtr(s string) *string { return &s }

func (f *noteFixture) createNote(t *testing.T) *model.Note {
	t.Helper()
	note, err := f.notes.Create(context.Background(), f.owner, NoteInput{Title: strPtr("Plan"), Content: strPtr("draft")})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	return note
}

func TestPermissionResolve(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := f.createNote(t)

	perm, err := f.perms.Resolve(ctx, note, f.owner)
	if err != nil || perm != model.PermissionOwner {
		t.Fatalf("expected OWNER got %q %v", perm, err)
	}
	if _, err := f.perms.Resolve(ctx, note, f.stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied got %v", err)
	}

	if _, err := f.perms.Share(ctx, note, f.owner, f.grantee, model.PermissionViewer); err != nil {
		t.Fatalf("share: %v", err)
	}
	perm, err = f.perms.Resolve(ctx, note, f.grantee)
	if err != nil || perm != model.PermissionViewer {
		t.Fatalf("expected VIEWER got %q %v", perm, err)
	}
}

func TestPermissionShareValidation(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := f.createNote(t)

	cases := []struct {
		name    string
		actor   uint
		grantee uint
		perm    model.Permission
		wantErr error
	}{
		{name: "non owner", actor: f.grantee, grantee: f.stranger, perm: model.PermissionViewer, wantErr: util.ErrPermissionDenied},
		{name: "share with owner", actor: f.owner, grantee: f.owner, perm: model.PermissionViewer, wantErr: util.ErrValidation},
		{name: "grant owner", actor: f.owner, grantee: f.grantee, perm: model.PermissionOwner, wantErr: util.ErrValidation},
		{name: "unknown permission", actor: f.owner, grantee: f.grantee, perm: model.Permission("ADMIN"), wantErr: util.ErrValidation},
		{name: "unknown user", actor: f.owner, grantee: 999, perm: model.PermissionViewer, wantErr: util.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.perms.Share(ctx, note, tc.actor, tc.grantee, tc.perm); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
		})
	}
}

// 查看者改标题被拒，升级为编辑者后同一修改成功
func TestNoteShareUpgradeAllowsEdit(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := f.createNote(t)

	if _, err := f.notes.Share(ctx, note.ID, f.owner, f.grantee, model.PermissionViewer); err != nil {
		t.Fatalf("share viewer: %v", err)
	}

	got, perm, err := f.notes.Get(ctx, note.ID, f.grantee)
	if err != nil {
		t.Fatalf("viewer get: %v", err)
	}
	if perm != model.PermissionViewer || !got.IsShared {
		t.Fatalf("expected shared note with VIEWER, got %q shared=%v", perm, got.IsShared)
	}

	update := NoteInput{Title: strPtr("Renamed")}
	if _, err := f.notes.Update(ctx, note.ID, f.grantee, update); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("viewer update should be denied, got %v", err)
	}

	if _, err := f.notes.Share(ctx, note.ID, f.owner, f.grantee, model.PermissionEditor); err != nil {
		t.Fatalf("upgrade to editor: %v", err)
	}
	grants, err := f.notes.ListShares(ctx, note.ID, f.owner)
	if err != nil {
		t.Fatalf("list shares: %v", err)
	}
	if len(grants) != 1 || grants[0].Permission != model.PermissionEditor {
		t.Fatalf("sharing twice must upsert a single grant, got %+v", grants)
	}

	updated, err := f.notes.Update(ctx, note.ID, f.grantee, update)
	if err != nil {
		t.Fatalf("editor update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Content != "draft" {
		t.Fatalf("unexpected note after update %+v", updated)
	}

	if err := f.notes.Delete(ctx, note.ID, f.grantee); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("editor cannot delete, got %v", err)
	}
	if _, err := f.notes.ListShares(ctx, note.ID, f.grantee); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("editor cannot list grants, got %v", err)
	}
}

func TestNoteUnshareClearsSharedFlag(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()
	note := f.createNote(t)

	if _, err := f.notes.Share(ctx, note.ID, f.owner, f.grantee, model.PermissionViewer); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, err := f.notes.Share(ctx, note.ID, f.owner, f.stranger, model.PermissionEditor); err != nil {
		t.Fatalf("share: %v", err)
	}

	if err := f.notes.Unshare(ctx, note.ID, f.owner, f.grantee); err != nil {
		t.Fatalf("unshare: %v", err)
	}
	if !f.shares.isShared(model.KindNote, note.ID) {
		t.Fatal("note still has a grant and should stay shared")
	}
	if err := f.notes.Unshare(ctx, note.ID, f.owner, f.stranger); err != nil {
		t.Fatalf("unshare: %v", err)
	}
	if f.shares.isShared(model.KindNote, note.ID) {
		t.Fatal("removing the last grant should clear the shared flag")
	}
	if err := f.notes.Unshare(ctx, note.ID, f.owner, f.stranger); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("removing a missing grant should be not found, got %v", err)
	}

	if _, _, err := f.notes.Get(ctx, note.ID, f.grantee); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("revoked grantee should be denied, got %v", err)
	}

	kinds := f.notifier.kinds()
	if len(kinds) != 2 || kinds[0] != NotifyResourceShared {
		t.Fatalf("expected two share notifications got %v", kinds)
	}
}

func TestNoteCreateValidation(t *testing.T) {
	f := newNoteFixture()
	ctx := context.Background()

	if _, err := f.notes.Create(ctx, f.owner, NoteInput{}); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("missing title should fail, got %v", err)
	}
	if _, err := f.notes.Create(ctx, f.owner, NoteInput{Title: strPtr("   ")}); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("blank title should fail, got %v", err)
	}
	long := make([]rune, 201)
	for i := range long {
		long[i] = '字'
	}
	if _, err := f.notes.Create(ctx, f.owner, NoteInput{Title: strPtr(string(long))}); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("title over 200 characters should fail, got %v", err)
	}
}
