package controller

import "planora_backend/internal/service"

// eventDeliverer REST 操作成功后通过实时网关推送给在线用户
type eventDeliverer interface {
	Deliver(userIDs []uint, evt service.OutboundEvent)
}
