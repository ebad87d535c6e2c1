package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "expired", err: ErrTokenExpired, status: http.StatusUnauthorized, code: CodeTokenExpired},
		{name: "invalid", err: ErrTokenInvalid, status: http.StatusUnauthorized, code: CodeUnauthorized},
		{name: "refresh missing", err: ErrRefreshNotFound, status: http.StatusUnauthorized, code: CodeUnauthorized},
		{name: "bad credentials", err: ErrBadCredentials, status: http.StatusUnauthorized, code: CodeUnauthorized},
		{name: "denied", err: ErrPermissionDenied, status: http.StatusForbidden, code: CodeForbidden},
		{name: "not friends", err: ErrNotFriends, status: http.StatusForbidden, code: CodeForbidden},
		{name: "user not found", err: ErrUserNotFound, status: http.StatusNotFound, code: CodeNotFound},
		{name: "validation", err: Validationf("title is required"), status: http.StatusBadRequest, code: CodeValidation},
		{name: "duplicate email", err: ErrEmailRegistered, status: http.StatusConflict, code: CodeConflict},
		{name: "wrapped conflict", err: fmt.Errorf("save: %w", ErrConflict), status: http.StatusConflict, code: CodeConflict},
		{name: "rate limited", err: &RateLimitedError{RetryAfter: 3}, status: http.StatusTooManyRequests, code: CodeRateLimited},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := StatusOf(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("expected %d %s got %d %s", tc.status, tc.code, status, code)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	retry, ok := IsRateLimited(fmt.Errorf("event: %w", &RateLimitedError{RetryAfter: 12}))
	if !ok || retry != 12 {
		t.Fatalf("expected wrapped rate limit with 12s got %d %v", retry, ok)
	}
	if _, ok := IsRateLimited(ErrConflict); ok {
		t.Fatal("conflict is not a rate limit")
	}
}
