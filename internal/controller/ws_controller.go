package controller

import (
	"errors"
	"planora_backend/internal/middleware"
	"planora_backend/internal/service"
	"planora_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type WSController struct {
	Gateway  *service.Gateway
	Verifier middleware.AccessVerifier
}

func NewWSController(gateway *service.Gateway, verifier middleware.AccessVerifier) *WSController {
	return &WSController{Gateway: gateway, Verifier: verifier}
}

// Connect godoc
// @Summary 建立实时连接
// @Description 令牌来自 Authorization 头、access_token Cookie 或 token 参数；校验失败不升级连接
// @Tags 实时
// @Param token query string false "访问令牌"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} util.Response
// @Router /api/ws [get]
func (c *WSController) Connect(ctx *gin.Context) {
	claims, err := c.Verifier.VerifyAccess(middleware.ExtractToken(ctx))
	if err != nil {
		if errors.Is(err, util.ErrTokenExpired) {
			util.TokenExpired(ctx)
		} else {
			util.Unauthorized(ctx)
		}
		return
	}

	// 升级失败时 upgrader 已写回错误响应
	_ = c.Gateway.Serve(ctx.Writer, ctx.Request, claims.UserID)
}
