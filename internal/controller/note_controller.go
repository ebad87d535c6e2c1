package controller

import (
	"planora_backend/internal/service"
	"planora_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NoteController struct {
	NoteService *service.NoteService
	Gateway     eventDeliverer
}

func NewNoteController(noteService *service.NoteService, gateway eventDeliverer) *NoteController {
	return &NoteController{NoteService: noteService, Gateway: gateway}
}

// CreateNote godoc
// @Summary 创建笔记
// @Tags 笔记
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.NoteInput true "标题必填"
// @Success 201 {object} util.Response{data=model.Note}
// @Router /api/notes [post]
func (c *NoteController) CreateNote(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.NoteInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	note, err := c.NoteService.Create(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, note)
}

// ListNotes godoc
// @Summary 我的笔记；scope=shared 时返回共享给我的笔记
// @Tags 笔记
// @Produce json
// @Security ApiKeyAuth
// @Param scope query string false "owned | shared"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/notes [get]
func (c *NoteController) ListNotes(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit, offset := util.Pagination(ctx, 20)

	list := c.NoteService.ListOwned
	if ctx.Query("scope") == "shared" {
		list = c.NoteService.ListSharedWithMe
	}
	notes, total, err := list(ctx.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: notes, Total: total, Page: page, Limit: limit})
}

// GetNote godoc
// @Summary 笔记详情（至少 VIEWER）
// @Tags 笔记
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "笔记ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 403 {object} util.Response
// @Router /api/notes/{id} [get]
func (c *NoteController) GetNote(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	note, perm, err := c.NoteService.Get(ctx.Request.Context(), id, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"note": note, "permission": perm})
}

// UpdateNote godoc
// @Summary 更新笔记（至少 EDITOR）
// @Tags 笔记
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "笔记ID"
// @Param body body service.NoteInput true "可选字段"
// @Success 200 {object} util.Response{data=model.Note}
// @Failure 403 {object} util.Response
// @Router /api/notes/{id} [put]
func (c *NoteController) UpdateNote(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	var req service.NoteInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	note, err := c.NoteService.Update(ctx.Request.Context(), id, actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, note)
}

// DeleteNote godoc
// @Summary 删除笔记（仅所有者）
// @Tags 笔记
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "笔记ID"
// @Success 200 {object} util.Response
// @Router /api/notes/{id} [delete]
func (c *NoteController) DeleteNote(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	if err := c.NoteService.Delete(ctx.Request.Context(), id, actor); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ShareNote godoc
// @Summary 共享笔记（仅所有者）
// @Tags 笔记
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "笔记ID"
// @Param body body ShareRequest true "被授权用户与权限"
// @Success 200 {object} util.Response{data=model.ShareGrant}
// @Router /api/notes/{id}/shares [post]
func (c *NoteController) ShareNote(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	var req ShareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	grant, err := c.NoteService.Share(ctx.Request.Context(), id, actor, req.UserID, req.Permission)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	notifyShared(c.Gateway, grant, actor)
	util.Success(ctx, grant)
}

// UnshareNote godoc
// @Summary 取消共享（仅所有者）
// @Tags 笔记
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "笔记ID"
// @Param userId path int true "被授权用户ID"
// @Success 200 {object} util.Response
// @Router /api/notes/{id}/shares/{userId} [delete]
func (c *NoteController) UnshareNote(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	grantee, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if err := c.NoteService.Unshare(ctx.Request.Context(), id, actor, grantee); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListNoteShares godoc
// @Summary 笔记的共享列表（仅所有者）
// @Tags 笔记
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "笔记ID"
// @Success 200 {object} util.Response{data=[]model.ShareGrant}
// @Router /api/notes/{id}/shares [get]
func (c *NoteController) ListNoteShares(ctx *gin.Context) {
	id, actor, ok := idAndActor(ctx)
	if !ok {
		return
	}
	grants, err := c.NoteService.ListShares(ctx.Request.Context(), id, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grants)
}
