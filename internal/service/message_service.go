package service

import (
	"context"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"strings"
	"time"
	"unicode/utf8"
)

const maxMessageLength = 4000

type communicationGate interface {
	CanCommunicate(ctx context.Context, a, b uint) (bool, error)
}

// MessageService 私聊消息持久化，REST 接口与实时网关共用
type MessageService struct {
	Messages MessageStore
	Gate     communicationGate
}

func NewMessageService(messages MessageStore, gate communicationGate) *MessageService {
	return &MessageService{Messages: messages, Gate: gate}
}

type SendMessageInput struct {
	ReceiverID  uint     `json:"receiverId"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
}

func (in SendMessageInput) validate() error {
	if in.ReceiverID == 0 {
		return util.Validationf("receiverId is required")
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 {
		return util.Validationf("message must have content or attachments")
	}
	if utf8.RuneCountInString(in.Content) > maxMessageLength {
		return util.Validationf("message too long")
	}
	if len(in.Attachments) > util.MaxAttachments {
		return util.Validationf("at most %d attachments", util.MaxAttachments)
	}
	return nil
}

// Send 校验好友关系后持久化，只尝试一次
func (s *MessageService) Send(ctx context.Context, senderID uint, in SendMessageInput) (*model.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ok, err := s.Gate.CanCommunicate(ctx, senderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrNotFriends
	}

	return s.Create(ctx, senderID, in)
}

// Create 直接持久化，调用方需已通过好友关系校验
func (s *MessageService) Create(ctx context.Context, senderID uint, in SendMessageInput) (*model.Message, error) {
	msg := &model.Message{
		SenderID:    senderID,
		ReceiverID:  in.ReceiverID,
		Content:     in.Content,
		Attachments: model.Attachments(in.Attachments),
	}
	if err := s.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History 只有好友之间可以查看聊天记录
func (s *MessageService) History(ctx context.Context, userID, peerID uint, beforeID string, limit int) ([]model.Message, error) {
	ok, err := s.Gate.CanCommunicate(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrNotFriends
	}
	return s.Messages.History(ctx, userID, peerID, beforeID, limit)
}

// MarkRead readerID 已读 senderID 发来的消息，截至 messageID（含）
// 调用方需已通过好友关系校验；messageID 不属于该会话时返回 ErrNotFound
func (s *MessageService) MarkRead(ctx context.Context, readerID, senderID uint, messageID string, at time.Time) (int64, error) {
	return s.Messages.MarkRead(ctx, readerID, senderID, messageID, at)
}
