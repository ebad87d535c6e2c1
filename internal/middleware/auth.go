package middleware

import (
	"errors"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strings"

	"github.com/gin-gonic/gin"
)

// AccessVerifier 访问令牌校验（TokenService）
type AccessVerifier interface {
	VerifyAccess(token string) (*util.Claims, error)
}

// ExtractToken 依次从 Authorization 头、access_token Cookie、token 查询参数读取令牌
func ExtractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); token != "" && token != authHeader {
			return token
		}
	}
	if cookie, err := c.Cookie(util.AccessCookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// AuthMiddleware 校验访问令牌，过期时返回 TOKEN_EXPIRED 让客户端刷新
func AuthMiddleware(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := verifier.VerifyAccess(tokenString)
		if err != nil {
			if errors.Is(err, util.ErrTokenExpired) {
				util.TokenExpired(c)
			} else {
				util.Unauthorized(c)
			}
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// RoleMiddleware 管理员拥有所有角色的权限
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.RoleAdmin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
