package models

import (
	"time"
)

// APIKey stores only the SHA-256 of the key material; the plain key is shown
// once at creation.
type APIKey struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`

	Name    string `gorm:"type:varchar(100);not null" json:"name"`
	KeyHash string `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	Prefix  string `gorm:"type:varchar(12);not null" json:"prefix"`

	Active     bool       `gorm:"not null;default:true;index" json:"active"`
	LastUsedAt *time.Time `gorm:"type:timestamptz" json:"last_used_at"`
	ExpiresAt  *time.Time `gorm:"type:timestamptz" json:"expires_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"type:timestamptz" json:"revoked_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

// IPFilter modes.
const (
	IPFilterAllow = "allow"
	IPFilterDeny  = "deny"
)

type IPFilter struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// CIDR covers single addresses as /32.
	CIDR    string `gorm:"type:varchar(50);not null;uniqueIndex" json:"cidr"`
	Mode    string `gorm:"type:varchar(10);not null;default:'deny'" json:"mode"`
	Comment string `gorm:"type:varchar(200)" json:"comment"`
	Active  bool   `gorm:"not null;default:true;index" json:"active"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (IPFilter) TableName() string {
	return "ip_filters"
}

type BackupRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	BackupID  string `gorm:"type:varchar(40);not null;uniqueIndex" json:"backup_id"`
	Path      string `gorm:"type:varchar(300);not null" json:"path"`
	SizeBytes int64  `gorm:"not null;default:0" json:"size_bytes"`
	Status    string `gorm:"type:varchar(20);not null;default:'running'" json:"status"`
	Trigger   string `gorm:"type:varchar(20);not null;default:'cron'" json:"trigger"`
	Error     string `gorm:"type:text" json:"error,omitempty"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:timestamptz" json:"finished_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (BackupRecord) TableName() string {
	return "backup_records"
}
