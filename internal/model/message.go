package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Attachments 附件 URL 列表，以 JSON 存储
type Attachments []string

func (a Attachments) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	return string(b), err
}

func (a *Attachments) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("attachments: unsupported scan type")
	}
	return json.Unmarshal(raw, (*[]string)(a))
}

// Message 私聊消息记录
type Message struct {
	UUIDBase
	SenderID    uint        `gorm:"index:idx_msg_pair;not null" json:"senderId"`
	ReceiverID  uint        `gorm:"index:idx_msg_pair;index;not null" json:"receiverId"`
	Content     string      `gorm:"type:text" json:"content"`
	Attachments Attachments `gorm:"type:text" json:"attachments"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
