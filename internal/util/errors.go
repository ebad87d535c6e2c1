package util

import (
	"errors"
	"fmt"
)

var (
	// 认证失败 (401)
	ErrUnauthenticated = errors.New("authentication required")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrBadCredentials  = errors.New("invalid credentials")

	// 授权失败 (403)
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFriends       = errors.New("users are not friends")

	// 资源不存在 (404)
	ErrNotFound     = errors.New("resource not found")
	ErrUserNotFound = fmt.Errorf("user: %w", ErrNotFound)

	// 参数错误 (400) / 冲突 (409)
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("resource conflict")
	ErrEmailRegistered = fmt.Errorf("email already registered: %w", ErrConflict)
)

// Validationf 构造带说明的参数错误，可用 errors.Is(err, ErrValidation) 判断
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RateLimitedError 被限流时返回，携带剩余封禁秒数
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
}

// IsRateLimited 判断错误是否为限流错误并返回重试秒数
func IsRateLimited(err error) (int, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
