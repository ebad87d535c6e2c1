package model

import "time"

type ResourceKind string

const (
	KindNote     ResourceKind = "note"
	KindEvent    ResourceKind = "event"
	KindReminder ResourceKind = "reminder"
)

// Permission 资源权限，数值越大权限越高
type Permission string

const (
	PermissionNone   Permission = ""
	PermissionViewer Permission = "VIEWER"
	PermissionEditor Permission = "EDITOR"
	PermissionOwner  Permission = "OWNER"
)

// Rank VIEWER(1) < EDITOR(2) < OWNER(3)，未知权限为 0
func (p Permission) Rank() int {
	switch p {
	case PermissionViewer:
		return 1
	case PermissionEditor:
		return 2
	case PermissionOwner:
		return 3
	}
	return 0
}

// AtLeast 当前权限是否不低于 minimum
func (p Permission) AtLeast(minimum Permission) bool {
	return p.Rank() > 0 && p.Rank() >= minimum.Rank()
}

// Grantable 只有 EDITOR / VIEWER 可以授予他人
func (p Permission) Grantable() bool {
	return p == PermissionEditor || p == PermissionViewer
}

// Shareable 可共享资源（笔记、日程、提醒）
type Shareable interface {
	ResourceKind() ResourceKind
	ResourceID() uint
	OwnerUserID() uint
}

// ShareGrant 资源共享记录，(resource_kind, resource_id, user_id) 唯一
type ShareGrant struct {
	ID           uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceKind ResourceKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_share_resource_user" json:"resourceKind"`
	ResourceID   uint         `gorm:"not null;uniqueIndex:idx_share_resource_user" json:"resourceId"`
	UserID       uint         `gorm:"not null;uniqueIndex:idx_share_resource_user;index" json:"userId"`
	User         User         `gorm:"foreignKey:UserID;references:ID;constraint:false" json:"user,omitempty"`
	Permission   Permission   `gorm:"type:varchar(10);not null" json:"permission"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (ShareGrant) TableName() string {
	return "share_grants"
}
