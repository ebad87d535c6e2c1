package util

import (
	"errors"
	"net/http"
	"strconv"

	"planora_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 错误码，客户端可以据此区分 "令牌过期" 并尝试刷新
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func ErrorWithCode(c *gin.Context, status int, errorCode, message string) {
	c.JSON(status, Response{
		Code:      status,
		Message:   message,
		ErrorCode: errorCode,
	})
}

func Unauthorized(c *gin.Context) {
	ErrorWithCode(c, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
}

func TokenExpired(c *gin.Context) {
	ErrorWithCode(c, http.StatusUnauthorized, CodeTokenExpired, "Token expired")
}

func Forbidden(c *gin.Context) {
	ErrorWithCode(c, http.StatusForbidden, CodeForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, http.StatusBadRequest, CodeValidation, message)
}

func NotFound(c *gin.Context) {
	ErrorWithCode(c, http.StatusNotFound, CodeNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	ErrorWithCode(c, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// StatusOf 将业务错误映射为 HTTP 状态码和错误码
func StatusOf(err error) (int, string) {
	if _, ok := IsRateLimited(err); ok {
		return http.StatusTooManyRequests, CodeRateLimited
	}
	switch {
	case errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrRefreshNotFound), errors.Is(err, ErrBadCredentials):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotFriends):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, CodeConflict
	}
	return http.StatusInternalServerError, CodeInternal
}

// RespondError 统一的业务错误响应，未知错误记录日志并返回 500
func RespondError(c *gin.Context, err error) {
	status, code := StatusOf(err)
	if status == http.StatusInternalServerError {
		LogInternalError(c, err)
		return
	}
	if retry, ok := IsRateLimited(err); ok {
		c.Header("Retry-After", strconv.Itoa(retry))
	}
	ErrorWithCode(c, status, code, err.Error())
}
