package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ConditionalOrder condition types.
const (
	CondPriceAbove     = "PRICE_ABOVE"
	CondPriceBelow     = "PRICE_BELOW"
	CondPriceChangePct = "PRICE_CHANGE_PCT"
	CondTimeTrigger    = "TIME_TRIGGER"
	CondVolumeAbove    = "VOLUME_ABOVE"
	CondIndicator      = "INDICATOR"
)

// ConditionalOrder statuses. EXECUTED, CANCELLED, EXPIRED and FAILED are terminal.
const (
	CondOrderPending   = "PENDING"
	CondOrderTriggered = "TRIGGERED"
	CondOrderExecuted  = "EXECUTED"
	CondOrderCancelled = "CANCELLED"
	CondOrderExpired   = "EXPIRED"
	CondOrderFailed    = "FAILED"
)

// ConditionalOrder is a one-shot order whose placement is deferred until a
// market condition is met. It leaves PENDING permanently on its first fire.
type ConditionalOrder struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`

	ConditionType string `gorm:"type:varchar(30);not null" json:"condition_type"`
	Province      string `gorm:"type:varchar(20);not null;index" json:"province"`
	MarketType    string `gorm:"type:varchar(20);not null;default:'day_ahead'" json:"market_type"`

	TriggerPrice     *decimal.Decimal `gorm:"type:numeric(12,2)" json:"trigger_price"`
	TriggerChangePct *float64         `json:"trigger_change_pct"`
	TriggerTime      *time.Time       `gorm:"type:timestamptz" json:"trigger_time"`
	TriggerVolume    *decimal.Decimal `gorm:"type:numeric(16,3)" json:"trigger_volume"`
	// ReferencePrice anchors PRICE_CHANGE_PCT. Captured from the live quote at
	// creation time, falling back to the province base price.
	ReferencePrice  *decimal.Decimal `gorm:"type:numeric(12,2)" json:"reference_price"`
	ConditionParams datatypes.JSON   `gorm:"type:jsonb" json:"condition_params"`

	// Target order spec.
	Direction  string           `gorm:"type:varchar(10);not null" json:"direction"`
	Quantity   decimal.Decimal  `gorm:"type:numeric(16,3);not null" json:"quantity"`
	PriceType  string           `gorm:"type:varchar(10);not null;default:'limit'" json:"price_type"`
	LimitPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"limit_price"`

	Status  string `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Enabled bool   `gorm:"not null;default:true;index" json:"enabled"`

	ValidFrom  *time.Time `gorm:"type:timestamptz" json:"valid_from"`
	ValidUntil *time.Time `gorm:"type:timestamptz" json:"valid_until"`

	TriggeredAt     *time.Time       `gorm:"type:timestamptz" json:"triggered_at"`
	TriggeredPrice  *decimal.Decimal `gorm:"type:numeric(12,2)" json:"triggered_price"`
	ExecutedOrderID *uint64          `json:"executed_order_id"`
	ExecutionResult datatypes.JSON   `gorm:"type:jsonb" json:"execution_result"`
	ErrorMessage    string           `gorm:"type:text" json:"error_message,omitempty"`

	TriggerLogs []TriggerLog `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (ConditionalOrder) TableName() string {
	return "conditional_orders"
}

func (o *ConditionalOrder) CanTrigger(now time.Time) bool {
	if o == nil || o.Status != CondOrderPending || !o.Enabled {
		return false
	}
	if o.ValidFrom != nil && now.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && now.After(*o.ValidUntil) {
		return false
	}
	return true
}

func (o *ConditionalOrder) IsExpired(now time.Time) bool {
	return o != nil && o.ValidUntil != nil && now.After(*o.ValidUntil)
}

// TriggerLog is appended on every trigger attempt, immutable once the
// placement outcome is recorded.
type TriggerLog struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ConditionalOrderID uint64 `gorm:"not null;index" json:"conditional_order_id"`

	Success        bool           `gorm:"not null;default:false" json:"success"`
	MarketSnapshot datatypes.JSON `gorm:"type:jsonb" json:"market_snapshot"`
	Message        string         `gorm:"type:text" json:"message,omitempty"`

	TriggeredAt time.Time `gorm:"type:timestamptz;not null;index" json:"triggered_at"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (TriggerLog) TableName() string {
	return "trigger_logs"
}
