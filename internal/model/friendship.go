package model

import (
	"fmt"
	"time"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "PENDING"
	FriendshipAccepted FriendshipStatus = "ACCEPTED"
	FriendshipRejected FriendshipStatus = "REJECTED"
	FriendshipBlocked  FriendshipStatus = "BLOCKED"
)

// Friendship 一对用户之间唯一的关系记录（方向：Requester -> Addressee）
// PairKey 为两个用户ID按大小排序后的组合，唯一索引保证同一对用户只有一条记录
type Friendship struct {
	ID          uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID uint             `gorm:"index;not null" json:"requesterId"`
	Requester   User             `gorm:"foreignKey:RequesterID;references:ID;constraint:false" json:"requester,omitempty"`
	AddresseeID uint             `gorm:"index;not null" json:"addresseeId"`
	Addressee   User             `gorm:"foreignKey:AddresseeID;references:ID;constraint:false" json:"addressee,omitempty"`
	PairKey     string           `gorm:"size:41;uniqueIndex;not null" json:"-"`
	Status      FriendshipStatus `gorm:"type:varchar(10);default:'PENDING';index" json:"status"`
	BlockedBy   *uint            `json:"blockedBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// PairKeyOf 无序用户对的规范化键
func PairKeyOf(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Involves 判断用户是否为关系的一方
func (f *Friendship) Involves(userID uint) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// Counterparty 返回关系中的另一方
func (f *Friendship) Counterparty(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}
