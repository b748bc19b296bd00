package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification levels.
const (
	NotifyLevelInfo  = "info"
	NotifyLevelWarn  = "warn"
	NotifyLevelError = "error"
)

type Notification struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`

	Level   string         `gorm:"type:varchar(10);not null;default:'info'" json:"level"`
	Title   string         `gorm:"type:varchar(200);not null" json:"title"`
	Body    string         `gorm:"type:text" json:"body"`
	Source  string         `gorm:"type:varchar(30);not null;default:'system'" json:"source"`
	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload"`

	Read   bool       `gorm:"not null;default:false;index" json:"read"`
	ReadAt *time.Time `gorm:"type:timestamptz" json:"read_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
