package controller

import (
	"planora_backend/internal/service"
	"planora_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type EventController struct {
	EventService *service.EventService
	Gateway      eventDeliverer
}

func NewEventController(eventService *service.EventService, gateway eventDeliverer) *EventController {
	return &EventController{EventService: eventService, Gateway: gateway}
}

// parseRange 读取 from/to（RFC3339），缺省为不限制
func parseRange(ctx *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if v := ctx.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, util.Validationf("invalid from")
		}
	}
	if v := ctx.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, util.Validationf("invalid to")
		}
	}
	return from, to, nil
}

// CreateEvent godoc
// @Summary 创建日程
// @Tags 日程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.EventInput true "标题与开始时间必填"
// @Success 201 {object} util.Response{data=model.CalendarEvent}
// @Router /api/events [post]
func (c *EventController) CreateEvent(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.EventInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	event, err := c.EventService.Create(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, event)
}

// ListEvents godoc
// @Summary 日程列表
// @Tags 日程
// @Produce json
// @Security ApiKeyAuth
// @Param scope query string false "owned | shared"
// @Param from query string false "RFC3339"
// @Param to query string false "RFC3339"
// @Success 200 {object} util.Response{data=[]model.CalendarEvent}
// @Router /api/events [get]
func (c *EventController) ListEvents(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	from, to, err := parseRange(ctx)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	list := c.EventService.ListOwned
	if ctx.Query("scope") == "shared" {
		list = c.EventService.ListSharedWithMe
	}
	events, err := list(ctx.Request.Context(), claims.UserID, from, to)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, events)
}

// GetEvent godoc
// @Summary 日程详情（至少 VIEWER）
// @Tags 日程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "日程ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/events/{id} [get]
func (c *EventController) GetEvent(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	event, perm, err := c.EventService.Get(ctx.Request.Context(), id, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"event": event, "permission": perm})
}

// UpdateEvent godoc
// @Summary 更新日程（至少 EDITOR）
// @Tags 日程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "日程ID"
// @Param body body service.EventInput true "可选字段"
// @Success 200 {object} util.Response{data=model.CalendarEvent}
// @Router /api/events/{id} [put]
func (c *EventController) UpdateEvent(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	var req service.EventInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	event, err := c.EventService.Update(ctx.Request.Context(), id, actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, event)
}

// DeleteEvent godoc
// @Summary 删除日程（仅所有者）
// @Tags 日程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "日程ID"
// @Success 200 {object} util.Response
// @Router /api/events/{id} [delete]
func (c *EventController) DeleteEvent(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	if err := c.EventService.Delete(ctx.Request.Context(), id, actor); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ShareEvent godoc
// @Summary 共享日程（仅所有者）
// @Tags 日程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "日程ID"
// @Param body body ShareRequest true "被授权用户与权限"
// @Success 200 {object} util.Response{data=model.ShareGrant}
// @Router /api/events/{id}/shares [post]
func (c *EventController) ShareEvent(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	var req ShareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	grant, err := c.EventService.Share(ctx.Request.Context(), id, actor, req.UserID, req.Permission)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	notifyShared(c.Gateway, grant, actor)
	util.Success(ctx, grant)
}

// UnshareEvent godoc
// @Summary 取消共享（仅所有者）
// @Tags 日程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "日程ID"
// @Param userId path int true "被授权用户ID"
// @Success 200 {object} util.Response
// @Router /api/events/{id}/shares/{userId} [delete]
func (c *EventController) UnshareEvent(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	grantee, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if err := c.EventService.Unshare(ctx.Request.Context(), id, actor, grantee); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListEventShares godoc
// @Summary 日程的共享列表（仅所有者）
// @Tags 日程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "日程ID"
// @Success 200 {object} util.Response{data=[]model.ShareGrant}
// @Router /api/events/{id}/shares [get]
func (c *EventController) ListEventShares(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	grants, err := c.EventService.ListShares(ctx.Request.Context(), id, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grants)
}
