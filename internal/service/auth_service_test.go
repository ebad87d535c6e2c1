package service

import (
	"context"
	"errors"
	"planora_backend/internal/util"
	"testing"
)

func newAuthFixture(t *testing.T) (*AuthService, *TokenService, *inMemoryTokenStore) {
	t.Helper()
	users := newInMemoryUserStore()
	store := newInMemoryTokenStore()
	tokens, err := NewTokenService(store, users, testJWTConfig())
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	clock := newFakeClock()
	tokens.WithNowFunc(clock.Now)
	auth := NewAuthService(users, tokens)
	auth.now = clock.Now
	return auth, tokens, store
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		in      RegisterInput
		wantErr error
	}{
		{name: "empty name", in: RegisterInput{Name: " ", Email: "a@example.com", Password: "password1"}, wantErr: util.ErrValidation},
		{name: "bad email", in: RegisterInput{Name: "A", Email: "not-an-email", Password: "password1"}, wantErr: util.ErrValidation},
		{name: "display name email", in: RegisterInput{Name: "A", Email: "Alice <a@example.com>", Password: "password1"}, wantErr: util.ErrValidation},
		{name: "short password", in: RegisterInput{Name: "A", Email: "a@example.com", Password: "short"}, wantErr: util.ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := auth.Register(ctx, tc.in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	auth, tokens, _ := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := auth.Register(ctx, RegisterInput{Name: "Alice", Email: " Alice@Example.com ", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email should be normalized, got %q", user.Email)
	}
	if user.Password == "password1" {
		t.Fatal("password must be hashed")
	}
	if _, err := tokens.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("access token invalid: %v", err)
	}

	if _, _, err := auth.Register(ctx, RegisterInput{Name: "Other", Email: "alice@example.com", Password: "password2"}); !errors.Is(err, util.ErrConflict) {
		t.Fatalf("expected duplicate email conflict got %v", err)
	}

	if _, _, err := auth.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, util.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials got %v", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, util.ErrBadCredentials) {
		t.Fatalf("unknown email should look like bad credentials, got %v", err)
	}

	logged, _, err := auth.Login(ctx, "ALICE@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.LastLogin == nil || !logged.LastLogin.Equal(testNow) {
		t.Fatalf("expected last login to be touched, got %v", logged.LastLogin)
	}
	stored, err := auth.Users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !stored.IsOnline || stored.LastSeen == nil || !stored.LastSeen.Equal(testNow) {
		t.Fatalf("login should mark the user online, got online=%v lastSeen=%v", stored.IsOnline, stored.LastSeen)
	}
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	auth, tokens, store := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := auth.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := auth.Login(ctx, "alice@example.com", "password1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 sessions got %d", store.count())
	}

	if err := auth.ChangePassword(ctx, user.ID, "wrong", "password2"); !errors.Is(err, util.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials got %v", err)
	}
	if err := auth.ChangePassword(ctx, user.ID, "password1", "short"); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation got %v", err)
	}
	if err := auth.ChangePassword(ctx, user.ID, "password1", "password2"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if store.count() != 0 {
		t.Fatalf("all refresh tokens should be revoked, %d left", store.count())
	}
	if _, _, err := tokens.Refresh(ctx, pair.RefreshToken); !errors.Is(err, util.ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound got %v", err)
	}
	if _, _, err := auth.Login(ctx, "alice@example.com", "password2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAuthServiceLogout(t *testing.T) {
	auth, _, store := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := auth.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := auth.Login(ctx, "alice@example.com", "password1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := auth.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("expected no sessions after logout got %d", store.count())
	}
	stored, err := auth.Users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.IsOnline {
		t.Fatal("logout should mark the user offline")
	}
}
