package controller

import (
	"net/http"
	"planora_backend/internal/middleware"
	"planora_backend/internal/service"
	"planora_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService  *service.AuthService
	TokenService *service.TokenService
	IsRelease    bool // 是否为生产环境，决定 Cookie 的 Secure 属性
}

func NewAuthController(authService *service.AuthService, tokenService *service.TokenService, isRelease bool) *AuthController {
	return &AuthController{
		AuthService:  authService,
		TokenService: tokenService,
		IsRelease:    isRelease,
	}
}

// LoginRequest swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 非 Cookie 客户端在请求体中提交刷新令牌
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (c *AuthController) respondWithTokens(ctx *gin.Context, status int, user interface{}, pair *service.TokenPair) {
	util.SetAuthCookies(ctx, c.IsRelease, pair.AccessToken, pair.AccessExpiresAt, pair.RefreshToken, pair.RefreshExpiresAt)
	data := gin.H{
		"user":            user,
		"accessToken":     pair.AccessToken,
		"accessExpiresAt": pair.AccessExpiresAt,
		"refreshToken":    pair.RefreshToken,
	}
	if status == http.StatusCreated {
		util.Created(ctx, data)
		return
	}
	util.Success(ctx, data)
}

// Register godoc
// @Summary 注册新用户
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.RegisterInput true "用户注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.RegisterInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, pair, err := c.AuthService.Register(ctx.Request.Context(), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	c.respondWithTokens(ctx, http.StatusCreated, user, pair)
}

// Login godoc
// @Summary 用户登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=object} "登录成功，同时写入 Cookie"
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, pair, err := c.AuthService.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	c.respondWithTokens(ctx, http.StatusOK, user, pair)
}

func (c *AuthController) refreshTokenFrom(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(util.RefreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var req RefreshRequest
	if err := ctx.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// Refresh godoc
// @Summary 刷新访问令牌
// @Description 刷新令牌不轮换；失败时清除 Cookie
// @Tags 认证
// @Produce  json
// @Param   body body RefreshRequest false "刷新令牌（无 Cookie 时）"
// @Success 200 {object} util.Response{data=object}
// @Failure 401 {object} util.Response "刷新令牌无效或过期"
// @Router /api/auth/refresh [post]
func (c *AuthController) Refresh(ctx *gin.Context) {
	access, expiresAt, err := c.TokenService.Refresh(ctx.Request.Context(), c.refreshTokenFrom(ctx))
	if err != nil {
		util.ClearAuthCookies(ctx, c.IsRelease)
		util.RespondError(ctx, err)
		return
	}

	util.SetAccessCookie(ctx, c.IsRelease, access, expiresAt)
	util.Success(ctx, gin.H{"accessToken": access, "accessExpiresAt": expiresAt})
}

// Logout godoc
// @Summary 登出
// @Description 撤销该用户的全部刷新令牌并清除 Cookie
// @Tags 认证
// @Produce  json
// @Success 200 {object} util.Response
// @Router /api/auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()

	// 访问令牌可能已过期，此时只撤销本次提交的刷新令牌
	if claims, err := c.TokenService.VerifyAccess(middleware.ExtractToken(ctx)); err == nil {
		if err := c.AuthService.Logout(reqCtx, claims.UserID); err != nil {
			util.ClearAuthCookies(ctx, c.IsRelease)
			util.RespondError(ctx, err)
			return
		}
	} else if err := c.TokenService.Revoke(reqCtx, c.refreshTokenFrom(ctx)); err != nil {
		util.ClearAuthCookies(ctx, c.IsRelease)
		util.RespondError(ctx, err)
		return
	}

	util.ClearAuthCookies(ctx, c.IsRelease)
	util.Success(ctx, nil)
}

// ChangePassword godoc
// @Summary 修改密码
// @Description 成功后所有会话的刷新令牌失效，需要重新登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ChangePasswordRequest true "新旧密码"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "旧密码错误"
// @Router /api/auth/password [put]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.ChangePassword(ctx.Request.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.ClearAuthCookies(ctx, c.IsRelease)
	util.Success(ctx, nil)
}
