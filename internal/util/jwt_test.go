package util

import (
	"errors"
	"strings"
	"testing"
	"time"

	"planora_backend/internal/model"
)

func TestAccessJWTRoundTrip(t *testing.T) {
	secret := strings.Repeat("k", 32)
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	user := &model.User{Email: "alice@example.com", Role: model.RoleAdmin}
	user.ID = 42

	token, expiresAt, err := GenerateAccessJWT(user, secret, now, 15*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !expiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims, err := ParseJWT(token, secret, TokenTypeAccess, func() time.Time { return now.Add(time.Minute) })
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Role != model.RoleAdmin || claims.Subject != "42" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	cases := []struct {
		name    string
		secret  string
		typ     string
		at      time.Time
		wantErr error
	}{
		{name: "expired", secret: secret, typ: TokenTypeAccess, at: now.Add(time.Hour), wantErr: ErrTokenExpired},
		{name: "wrong secret", secret: strings.Repeat("x", 32), typ: TokenTypeAccess, at: now, wantErr: ErrTokenInvalid},
		{name: "wrong type", secret: secret, typ: TokenTypeRefresh, at: now, wantErr: ErrTokenInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := tc.at
			if _, err := ParseJWT(token, tc.secret, tc.typ, func() time.Time { return at }); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRefreshJWTIsUnique(t *testing.T) {
	secret := strings.Repeat("r", 32)
	now := time.Now()

	a, _, err := GenerateRefreshJWT(1, secret, now, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _, _ := GenerateRefreshJWT(1, secret, now, time.Hour)
	if a == b {
		t.Fatal("refresh tokens issued in the same second must differ")
	}
	if HashToken(a) == HashToken(b) || len(HashToken(a)) != 64 {
		t.Fatal("hash should be a distinct hex sha-256")
	}
}

func TestParseJWTRejectsGarbage(t *testing.T) {
	if _, err := ParseJWT("not.a.jwt", strings.Repeat("k", 32), TokenTypeAccess, time.Now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid got %v", err)
	}
}
