package models

import (
	"time"
)

type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Username     string `gorm:"type:varchar(50);not null;uniqueIndex" json:"username"`
	PasswordHash string `gorm:"type:varchar(100);not null" json:"-"`
	DisplayName  string `gorm:"type:varchar(100)" json:"display_name"`
	Role         string `gorm:"type:varchar(20);not null;default:'trader'" json:"role"`
	Active       bool   `gorm:"not null;default:true" json:"active"`

	LastLoginAt *time.Time `gorm:"type:timestamptz" json:"last_login_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
