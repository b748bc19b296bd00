package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// Order directions.
const (
	OrderDirectionBuy  = "buy"
	OrderDirectionSell = "sell"
)

type Order struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`

	Province   string `gorm:"type:varchar(20);not null;index" json:"province"`
	MarketType string `gorm:"type:varchar(20);not null;default:'day_ahead'" json:"market_type"`

	Direction string `gorm:"type:varchar(10);not null" json:"direction"`
	PriceType string `gorm:"type:varchar(10);not null;default:'limit'" json:"price_type"`

	// Price in yuan/MWh, quantity in MWh.
	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity decimal.Decimal `gorm:"type:numeric(16,3);not null" json:"quantity"`

	Status        string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Source        string `gorm:"type:varchar(20);not null;default:'manual'" json:"source"`
	FailureReason string `gorm:"type:text" json:"failure_reason,omitempty"`

	FilledAt    *time.Time `gorm:"type:timestamptz" json:"filled_at"`
	CancelledAt *time.Time `gorm:"type:timestamptz" json:"cancelled_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
