package service

import "encoding/json"

// 客户端上行事件
const (
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventMarkRead       = "mark_read"
	EventFriendRequest  = "friend_request"
	EventFriendAccepted = "friend_accepted"
)

// 服务端下行事件
const (
	EventNewMessage  = "new_message"
	EventMessageSent = "message_sent"
	EventPresence    = "presence"
	EventError       = "error"
	EventShared      = "resource_shared"
)

// 错误事件代码，只发送给触发事件的连接
const (
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeForbidden   = "FORBIDDEN"
	ErrCodeValidation  = "VALIDATION"
	ErrCodeInternal    = "INTERNAL"
)

// InboundEvent 每个 WebSocket 帧一个事件
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type OutboundEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type sendMessageData struct {
	SendMessageInput
	ClientMsgID string `json:"clientMsgId,omitempty"`
}

type typingData struct {
	ReceiverID uint `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
}

type markReadData struct {
	ReceiverID uint   `json:"receiverId"`
	MessageID  string `json:"messageId"`
}

// 客户端可能附带 friendshipId，转发时忽略，以存储中的记录为准
type friendRequestData struct {
	AddresseeID uint `json:"addresseeId"`
}

type friendAcceptedData struct {
	RequesterID uint `json:"requesterId"`
}

type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Event      string `json:"event,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

type PresencePayload struct {
	UserID   uint   `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen string `json:"lastSeen"`
}
