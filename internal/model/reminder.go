package model

import "time"

// swagger:model Reminder
type Reminder struct {
	BaseModel
	UserID   uint      `gorm:"index;not null" json:"userId"`
	Title    string    `gorm:"size:200;not null" json:"title"`
	Note     string    `gorm:"type:text" json:"note"`
	RemindAt time.Time `gorm:"index" json:"remindAt"`
	Done     bool      `gorm:"default:false" json:"done"`
	IsShared bool      `gorm:"default:false" json:"isShared"`
}

func (Reminder) TableName() string {
	return "reminders"
}

func (r *Reminder) ResourceKind() ResourceKind { return KindReminder }
func (r *Reminder) ResourceID() uint           { return r.ID }
func (r *Reminder) OwnerUserID() uint          { return r.UserID }
