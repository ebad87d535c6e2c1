package controller

import (
	"planora_backend/internal/service"
	"planora_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReminderController struct {
	ReminderService *service.ReminderService
	Gateway         eventDeliverer
}

func NewReminderController(reminderService *service.ReminderService, gateway eventDeliverer) *ReminderController {
	return &ReminderController{ReminderService: reminderService, Gateway: gateway}
}

// CreateReminder godoc
// @Summary 创建提醒
// @Tags 提醒
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.ReminderInput true "标题与提醒时间必填"
// @Success 201 {object} util.Response{data=model.Reminder}
// @Router /api/reminders [post]
func (c *ReminderController) CreateReminder(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.ReminderInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reminder, err := c.ReminderService.Create(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, reminder)
}

// ListReminders godoc
// @Summary 提醒列表，默认不含已完成
// @Tags 提醒
// @Produce json
// @Security ApiKeyAuth
// @Param scope query string false "owned | shared"
// @Param include_done query bool false "包含已完成"
// @Success 200 {object} util.Response{data=[]model.Reminder}
// @Router /api/reminders [get]
func (c *ReminderController) ListReminders(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	includeDone := ctx.Query("include_done") == "true"

	list := c.ReminderService.ListOwned
	if ctx.Query("scope") == "shared" {
		list = c.ReminderService.ListSharedWithMe
	}
	reminders, err := list(ctx.Request.Context(), claims.UserID, includeDone)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, reminders)
}

// GetReminder godoc
// @Summary 提醒详情（至少 VIEWER）
// @Tags 提醒
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提醒ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/reminders/{id} [get]
func (c *ReminderController) GetReminder(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	reminder, perm, err := c.ReminderService.Get(ctx.Request.Context(), id, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"reminder": reminder, "permission": perm})
}

// UpdateReminder godoc
// @Summary 更新提醒（至少 EDITOR）
// @Tags 提醒
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提醒ID"
// @Param body body service.ReminderInput true "可选字段"
// @Success 200 {object} util.Response{data=model.Reminder}
// @Router /api/reminders/{id} [put]
func (c *ReminderController) UpdateReminder(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	var req service.ReminderInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reminder, err := c.ReminderService.Update(ctx.Request.Context(), id, actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, reminder)
}

// DeleteReminder godoc
// @Summary 删除提醒（仅所有者）
// @Tags 提醒
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提醒ID"
// @Success 200 {object} util.Response
// @Router /api/reminders/{id} [delete]
func (c *ReminderController) DeleteReminder(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	if err := c.ReminderService.Delete(ctx.Request.Context(), id, actor); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ShareReminder godoc
// @Summary 共享提醒（仅所有者）
// @Tags 提醒
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提醒ID"
// @Param body body ShareRequest true "被授权用户与权限"
// @Success 200 {object} util.Response{data=model.ShareGrant}
// @Router /api/reminders/{id}/shares [post]
func (c *ReminderController) ShareReminder(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	var req ShareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	grant, err := c.ReminderService.Share(ctx.Request.Context(), id, actor, req.UserID, req.Permission)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	notifyShared(c.Gateway, grant, actor)
	util.Success(ctx, grant)
}

// UnshareReminder godoc
// @Summary 取消共享（仅所有者）
// @Tags 提醒
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提醒ID"
// @Param userId path int true "被授权用户ID"
// @Success 200 {object} util.Response
// @Router /api/reminders/{id}/shares/{userId} [delete]
func (c *ReminderController) UnshareReminder(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	grantee, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if err := c.ReminderService.Unshare(ctx.Request.Context(), id, actor, grantee); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListReminderShares godoc
// @Summary 提醒的共享列表（仅所有者）
// @Tags 提醒
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提醒ID"
// @Success 200 {object} util.Response{data=[]model.ShareGrant}
// @Router /api/reminders/{id}/shares [get]
func (c *ReminderController) ListReminderShares(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	grants, err := c.ReminderService.ListShares(ctx.Request.Context(), id, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grants)
}
