package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketQuote is a persisted snapshot of the feed, one row per
// (province, market type) refresh.
type MarketQuote struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Province   string `gorm:"type:varchar(20);not null;index:idx_quote_scope" json:"province"`
	MarketType string `gorm:"type:varchar(20);not null;index:idx_quote_scope" json:"market_type"`

	Price  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Volume decimal.Decimal `gorm:"type:numeric(16,3);not null" json:"volume"`

	QuotedAt  time.Time `gorm:"type:timestamptz;not null;index" json:"quoted_at"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (MarketQuote) TableName() string {
	return "market_quotes"
}
