package controller

import (
	"planora_backend/internal/service"
	"planora_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type MessageController struct {
	MessageService *service.MessageService
	StorageService *service.StorageService
	Gateway        eventDeliverer
}

func NewMessageController(messageService *service.MessageService, storageService *service.StorageService, gateway eventDeliverer) *MessageController {
	return &MessageController{MessageService: messageService, StorageService: storageService, Gateway: gateway}
}

// SendMessage godoc
// @Summary 发送私聊消息（仅好友）
// @Tags 消息
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.SendMessageInput true "消息内容"
// @Success 201 {object} util.Response{data=model.Message}
// @Failure 403 {object} util.Response "不是好友"
// @Router /api/messages [post]
func (c *MessageController) SendMessage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.SendMessageInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	msg, err := c.MessageService.Send(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	c.Gateway.Deliver([]uint{msg.ReceiverID}, service.OutboundEvent{Type: service.EventNewMessage, Data: msg})
	c.Gateway.Deliver([]uint{msg.SenderID}, service.OutboundEvent{Type: service.EventMessageSent, Data: gin.H{"message": msg}})
	util.Created(ctx, msg)
}

// GetHistory godoc
// @Summary 与某个好友的聊天记录（倒序）
// @Tags 消息
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "好友ID"
// @Param before_id query string false "只返回该消息之前的记录"
// @Param limit query int false "数量，默认 50"
// @Success 200 {object} util.Response{data=[]model.Message}
// @Router /api/messages/{userId} [get]
func (c *MessageController) GetHistory(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	peerID, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	msgs, err := c.MessageService.History(ctx.Request.Context(), claims.UserID, peerID, ctx.Query("before_id"), limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, msgs)
}

// UploadAttachment godoc
// @Summary 上传聊天附件
// @Tags 消息
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "附件"
// @Success 201 {object} util.Response{data=object}
// @Router /api/messages/attachments [post]
func (c *MessageController) UploadAttachment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	url, err := c.StorageService.UploadAttachment(ctx.Request.Context(), claims.UserID, fileHeader.Filename, file,
		fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"url": url, "name": fileHeader.Filename, "size": fileHeader.Size})
}
