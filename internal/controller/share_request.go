package controller

import (
	"planora_backend/internal/model"
	"planora_backend/internal/service"
	"planora_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ShareRequest 授予权限，permission 只能是 EDITOR / VIEWER
type ShareRequest struct {
	UserID     uint             `json:"userId" binding:"required"`
	Permission model.Permission `json:"permission" binding:"required"`
}

// notifyShared 通知被授权用户
func notifyShared(d eventDeliverer, grant *model.ShareGrant, ownerID uint) {
	d.Deliver([]uint{grant.UserID}, service.OutboundEvent{
		Type: service.EventShared,
		Data: gin.H{
			"resourceKind": grant.ResourceKind,
			"resourceId":   grant.ResourceID,
			"permission":   grant.Permission,
			"ownerId":      ownerID,
		},
	})
}

// idAndActor 读取路径中的资源ID和当前用户
func idAndActor(ctx *gin.Context) (uint, uint, bool) {
	claims := util.GetUserFromContext(ctx)
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.RespondError(ctx, err)
		return 0, 0, false
	}
	return id, claims.UserID, true
}
