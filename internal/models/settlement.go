package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is simulated bookkeeping derived from filled orders. No real
// settlement computation happens here.
type Settlement struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`
	OrderID uint64 `gorm:"not null;index" json:"order_id"`

	Province      string          `gorm:"type:varchar(20);not null;index" json:"province"`
	SettlementDay time.Time       `gorm:"type:date;not null;index" json:"settlement_day"`
	Quantity      decimal.Decimal `gorm:"type:numeric(16,3);not null" json:"quantity"`
	AvgPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"avg_price"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`

	Status string `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}
