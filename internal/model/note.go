package model

// swagger:model Note
type Note struct {
	BaseModel
	UserID   uint   `gorm:"index;not null" json:"userId"`
	Title    string `gorm:"size:200;not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	IsShared bool   `gorm:"default:false" json:"isShared"`
}

func (Note) TableName() string {
	return "notes"
}

func (n *Note) ResourceKind() ResourceKind { return KindNote }
func (n *Note) ResourceID() uint           { return n.ID }
func (n *Note) OwnerUserID() uint          { return n.UserID }
