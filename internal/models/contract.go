package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Contract struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`

	ContractNo string `gorm:"type:varchar(40);not null;uniqueIndex" json:"contract_no"`
	Province   string `gorm:"type:varchar(20);not null;index" json:"province"`
	MarketType string `gorm:"type:varchar(20);not null;default:'day_ahead'" json:"market_type"`

	Counterparty string          `gorm:"type:varchar(100)" json:"counterparty"`
	Direction    string          `gorm:"type:varchar(10);not null" json:"direction"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity     decimal.Decimal `gorm:"type:numeric(16,3);not null" json:"quantity"`

	DeliveryStart time.Time `gorm:"type:timestamptz;not null" json:"delivery_start"`
	DeliveryEnd   time.Time `gorm:"type:timestamptz;not null" json:"delivery_end"`

	Status string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}
