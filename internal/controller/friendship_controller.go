package controller

import (
	"context"
	"planora_backend/internal/service"
	"planora_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// friendGateway 推送事件，并查询好友的实时在线状态
type friendGateway interface {
	eventDeliverer
	IsOnline(ctx context.Context, userID uint) bool
}

type FriendshipController struct {
	FriendshipService *service.FriendshipService
	Gateway           friendGateway
}

func NewFriendshipController(friendshipService *service.FriendshipService, gateway friendGateway) *FriendshipController {
	return &FriendshipController{FriendshipService: friendshipService, Gateway: gateway}
}

type FriendRequestBody struct {
	AddresseeID uint `json:"addresseeId" binding:"required"`
}

// ListFriends godoc
// @Summary 好友列表
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param q query string false "按昵称或邮箱过滤"
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /api/friends [get]
func (c *FriendshipController) ListFriends(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	friends, err := c.FriendshipService.ListFriends(ctx.Request.Context(), claims.UserID, ctx.Query("q"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	// 数据库中的在线标记可能因进程崩溃而过期，以网关为准
	for i := range friends {
		friends[i].IsOnline = c.Gateway.IsOnline(ctx.Request.Context(), friends[i].ID)
	}
	util.Success(ctx, friends)
}

// SendRequest godoc
// @Summary 发送好友请求
// @Tags 好友
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body FriendRequestBody true "接收方"
// @Success 201 {object} util.Response{data=model.Friendship}
// @Failure 409 {object} util.Response "双方已有关系记录"
// @Router /api/friends/requests [post]
func (c *FriendshipController) SendRequest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req FriendRequestBody
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	f, err := c.FriendshipService.Request(ctx.Request.Context(), claims.UserID, req.AddresseeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	c.Gateway.Deliver([]uint{f.AddresseeID}, service.OutboundEvent{
		Type: service.EventFriendRequest,
		Data: gin.H{"requesterId": f.RequesterID, "friendshipId": f.ID},
	})
	util.Created(ctx, f)
}

// ListRequests godoc
// @Summary 发出和收到的好友请求
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/friends/requests [get]
func (c *FriendshipController) ListRequests(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit, offset := util.Pagination(ctx, 20)
	reqs, total, err := c.FriendshipService.ListRequests(ctx.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: reqs, Total: total, Page: page, Limit: limit})
}

// ListPending godoc
// @Summary 收到的待处理请求
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Friendship}
// @Router /api/friends/requests/pending [get]
func (c *FriendshipController) ListPending(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	reqs, err := c.FriendshipService.ListPending(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, reqs)
}

// AcceptRequest godoc
// @Summary 接受好友请求
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "关系ID"
// @Success 200 {object} util.Response{data=model.Friendship}
// @Router /api/friends/requests/{id}/accept [put]
func (c *FriendshipController) AcceptRequest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	f, err := c.FriendshipService.Accept(ctx.Request.Context(), id, claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	c.Gateway.Deliver([]uint{f.RequesterID}, service.OutboundEvent{
		Type: service.EventFriendAccepted,
		Data: gin.H{"addresseeId": f.AddresseeID, "friendshipId": f.ID},
	})
	util.Success(ctx, f)
}

// RejectRequest godoc
// @Summary 拒绝好友请求
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "关系ID"
// @Success 200 {object} util.Response{data=model.Friendship}
// @Router /api/friends/requests/{id}/reject [put]
func (c *FriendshipController) RejectRequest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	f, err := c.FriendshipService.Reject(ctx.Request.Context(), id, claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, f)
}

// CancelRequest godoc
// @Summary 撤回自己发出的请求
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "关系ID"
// @Success 200 {object} util.Response
// @Router /api/friends/requests/{id} [delete]
func (c *FriendshipController) CancelRequest(ctx *gin.Context) {
	c.mutate(ctx, c.FriendshipService.Cancel)
}

// DismissRequest godoc
// @Summary 清除自己拒绝过的请求
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "关系ID"
// @Success 200 {object} util.Response
// @Router /api/friends/requests/{id}/dismiss [delete]
func (c *FriendshipController) DismissRequest(ctx *gin.Context) {
	c.mutate(ctx, c.FriendshipService.Dismiss)
}

// RemoveFriend godoc
// @Summary 删除好友
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "关系ID"
// @Success 200 {object} util.Response
// @Router /api/friends/{id} [delete]
func (c *FriendshipController) RemoveFriend(ctx *gin.Context) {
	c.mutate(ctx, c.FriendshipService.Remove)
}

func (c *FriendshipController) mutate(ctx *gin.Context, op func(reqCtx context.Context, id, actor uint) error) {
	claims := util.GetUserFromContext(ctx)
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if err := op(ctx.Request.Context(), id, claims.UserID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Block godoc
// @Summary 拉黑用户
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response{data=model.Friendship}
// @Router /api/friends/blocks/{userId} [post]
func (c *FriendshipController) Block(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	target, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	f, err := c.FriendshipService.Block(ctx.Request.Context(), claims.UserID, target)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, f)
}

// Unblock godoc
// @Summary 取消拉黑（仅拉黑方）
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response
// @Router /api/friends/blocks/{userId} [delete]
func (c *FriendshipController) Unblock(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	target, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	if err := c.FriendshipService.Unblock(ctx.Request.Context(), claims.UserID, target); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
