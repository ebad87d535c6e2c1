package model

import "time"

// swagger:model CalendarEvent
type CalendarEvent struct {
	BaseModel
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	StartAt     time.Time `gorm:"index" json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	AllDay      bool      `gorm:"default:false" json:"allDay"`
	IsShared    bool      `gorm:"default:false" json:"isShared"`
}

func (CalendarEvent) TableName() string {
	return "calendar_events"
}

func (e *CalendarEvent) ResourceKind() ResourceKind { return KindEvent }
func (e *CalendarEvent) ResourceID() uint           { return e.ID }
func (e *CalendarEvent) OwnerUserID() uint          { return e.UserID }
