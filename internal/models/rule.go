package models

import (
	"time"

	"gorm.io/datatypes"
)

// Rule statuses.
const (
	RuleStatusActive   = "ACTIVE"
	RuleStatusInactive = "INACTIVE"
	RuleStatusPaused   = "PAUSED"
	RuleStatusDeleted  = "DELETED"
)

// Rule action types.
const (
	ActionPlaceOrder      = "PLACE_ORDER"
	ActionSendAlert       = "SEND_ALERT"
	ActionCancelOrder     = "CANCEL_ORDER"
	ActionAdjustPosition  = "ADJUST_POSITION"
	ActionExecuteStrategy = "EXECUTE_STRATEGY"
)

// Rule is a repeatable condition → action automation with rate limiting.
type Rule struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`

	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Status      string `gorm:"type:varchar(20);not null;default:'INACTIVE';index" json:"status"`
	Priority    int    `gorm:"not null;default:0;index" json:"priority"`

	// ConditionExpr is the boolean condition tree, see engine.ParseCondition.
	ConditionExpr   datatypes.JSON `gorm:"type:jsonb;not null" json:"condition_expr"`
	ConditionParams datatypes.JSON `gorm:"type:jsonb" json:"condition_params"`

	// Scope filters. Empty array means "any".
	Provinces   datatypes.JSON `gorm:"type:jsonb" json:"provinces"`
	MarketTypes datatypes.JSON `gorm:"type:jsonb" json:"market_types"`

	ActionType   string         `gorm:"type:varchar(30);not null" json:"action_type"`
	ActionParams datatypes.JSON `gorm:"type:jsonb" json:"action_params"`

	ExecutionCount      int        `gorm:"not null;default:0" json:"execution_count"`
	TodayExecutionCount int        `gorm:"not null;default:0" json:"today_execution_count"`
	LastExecutedAt      *time.Time `gorm:"type:timestamptz" json:"last_executed_at"`

	MaxExecutionsPerDay int  `gorm:"not null;default:10" json:"max_executions_per_day"`
	MinIntervalSeconds  int  `gorm:"not null;default:60" json:"min_interval_seconds"`
	MaxTotalExecutions  *int `json:"max_total_executions"`

	Executions []RuleExecution `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Rule) TableName() string {
	return "trading_rules"
}

// CanExecute is the rate-limit gate. A false here is a normal skip, not an
// evaluation attempt, so the caller must not record an execution for it.
func (r *Rule) CanExecute(now time.Time) bool {
	if r == nil || r.Status != RuleStatusActive {
		return false
	}
	if r.MaxExecutionsPerDay > 0 && r.TodayExecutionCount >= r.MaxExecutionsPerDay {
		return false
	}
	if r.MaxTotalExecutions != nil && r.ExecutionCount >= *r.MaxTotalExecutions {
		return false
	}
	if r.LastExecutedAt != nil && r.MinIntervalSeconds > 0 {
		if now.Sub(*r.LastExecutedAt) < time.Duration(r.MinIntervalSeconds)*time.Second {
			return false
		}
	}
	return true
}

// RuleExecution is appended on every dispatch attempt and never mutated.
type RuleExecution struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID uint64 `gorm:"not null;index" json:"rule_id"`

	Success      bool           `gorm:"not null" json:"success"`
	ActionResult datatypes.JSON `gorm:"type:jsonb" json:"action_result"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`

	// ConditionResults is the per-leaf evaluation trace.
	ConditionResults datatypes.JSON `gorm:"type:jsonb" json:"condition_results"`
	// TriggerData snapshots the market context the rule fired against.
	TriggerData datatypes.JSON `gorm:"type:jsonb" json:"trigger_data"`

	ExecutedAt time.Time `gorm:"type:timestamptz;not null;index" json:"executed_at"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (RuleExecution) TableName() string {
	return "rule_executions"
}
