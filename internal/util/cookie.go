package util

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
	// 刷新令牌 Cookie 只在认证路径下发送
	RefreshCookiePath = "/api/auth"
)

func maxAge(expiresAt time.Time) int {
	secs := int(time.Until(expiresAt).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// SetAuthCookies 写入 httpOnly + SameSite=Strict 的令牌 Cookie
func SetAuthCookies(c *gin.Context, secure bool, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookieName, access, maxAge(accessExp), "/", "", secure, true)
	if refresh != "" {
		c.SetCookie(RefreshCookieName, refresh, maxAge(refreshExp), RefreshCookiePath, "", secure, true)
	}
}

// SetAccessCookie 刷新后只更新访问令牌
func SetAccessCookie(c *gin.Context, secure bool, access string, accessExp time.Time) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookieName, access, maxAge(accessExp), "/", "", secure, true)
}

// ClearAuthCookies 登出或刷新失败时清除 Cookie
func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookieName, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshCookieName, "", -1, RefreshCookiePath, "", secure, true)
}
