package repository

import (
	"context"
	"time"

	"powerx/internal/models"
)

type ListRulesParams struct {
	OwnerID *uint64
	Status  *string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

type ListRuleExecutionsParams struct {
	RuleID  *uint64
	Success *bool
	Since   *time.Time
	Limit   int
	Offset  int
}

type ListConditionalOrdersParams struct {
	OwnerID  *uint64
	Status   *string
	Province *string
	Limit    int
	Offset   int
	OrderBy  string
	Asc      *bool
}

type ListTriggerLogsParams struct {
	ConditionalOrderID *uint64
	Limit              int
	Offset             int
}

type ListOrdersParams struct {
	OwnerID  *uint64
	Status   *string
	Province *string
	Source   *string
	Limit    int
	Offset   int
	OrderBy  string
	Asc      *bool
}

type ListContractsParams struct {
	OwnerID  *uint64
	Status   *string
	Province *string
	Limit    int
	Offset   int
}

type ListSettlementsParams struct {
	OwnerID  *uint64
	Province *string
	Day      *time.Time
	Limit    int
	Offset   int
}

type ListMarketQuotesParams struct {
	Province   *string
	MarketType *string
	Since      *time.Time
	Limit      int
	Offset     int
}

type ListNotificationsParams struct {
	OwnerID    *uint64
	Level      *string
	UnreadOnly bool
	Limit      int
	Offset     int
}

type ListBackupRecordsParams struct {
	Status *string
	Limit  int
	Offset int
}

// DashboardStats is the aggregate snapshot behind the dashboard endpoint.
type DashboardStats struct {
	ActiveRules              int64 `json:"active_rules"`
	PendingConditionalOrders int64 `json:"pending_conditional_orders"`
	TodayRuleExecutions      int64 `json:"today_rule_executions"`
	TodayTriggers            int64 `json:"today_triggers"`
	OpenOrders               int64 `json:"open_orders"`
	FilledOrdersToday        int64 `json:"filled_orders_today"`
	ActiveContracts          int64 `json:"active_contracts"`
	UnreadNotifications      int64 `json:"unread_notifications"`
}

// Repository is the persistence port shared by the engine, the dispatcher and
// the HTTP layer.
type Repository interface {
	// Rules
	InsertRule(ctx context.Context, item *models.Rule) error
	GetRuleByID(ctx context.Context, id uint64) (*models.Rule, error)
	ListRules(ctx context.Context, params ListRulesParams) ([]models.Rule, error)
	CountRules(ctx context.Context, params ListRulesParams) (int64, error)
	UpdateRule(ctx context.Context, id uint64, updates map[string]any) error
	UpdateRuleStatus(ctx context.Context, id uint64, status string) error
	DeleteRule(ctx context.Context, id uint64) error
	// ListActiveRules returns ACTIVE rules ordered priority desc, id asc.
	ListActiveRules(ctx context.Context, limit int) ([]models.Rule, error)
	// MarkRuleExecuted bumps both counters and lastExecutedAt atomically.
	MarkRuleExecuted(ctx context.Context, id uint64, executedAt time.Time) error
	ResetTodayExecutionCounts(ctx context.Context) (int64, error)

	InsertRuleExecution(ctx context.Context, item *models.RuleExecution) error
	ListRuleExecutions(ctx context.Context, params ListRuleExecutionsParams) ([]models.RuleExecution, error)
	CountRuleExecutions(ctx context.Context, params ListRuleExecutionsParams) (int64, error)

	// Conditional orders
	InsertConditionalOrder(ctx context.Context, item *models.ConditionalOrder) error
	GetConditionalOrderByID(ctx context.Context, id uint64) (*models.ConditionalOrder, error)
	ListConditionalOrders(ctx context.Context, params ListConditionalOrdersParams) ([]models.ConditionalOrder, error)
	CountConditionalOrders(ctx context.Context, params ListConditionalOrdersParams) (int64, error)
	// ListPendingConditionalOrders returns PENDING + enabled orders, id asc.
	ListPendingConditionalOrders(ctx context.Context, limit int) ([]models.ConditionalOrder, error)
	UpdateConditionalOrder(ctx context.Context, id uint64, updates map[string]any) error
	DeleteConditionalOrder(ctx context.Context, id uint64) error

	InsertTriggerLog(ctx context.Context, item *models.TriggerLog) error
	UpdateTriggerLogResult(ctx context.Context, id uint64, success bool, message string) error
	ListTriggerLogs(ctx context.Context, params ListTriggerLogsParams) ([]models.TriggerLog, error)

	// Orders
	InsertOrder(ctx context.Context, item *models.Order) error
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)
	CountOrders(ctx context.Context, params ListOrdersParams) (int64, error)
	UpdateOrderStatus(ctx context.Context, id uint64, status string, updates map[string]any) error

	// Contracts
	InsertContract(ctx context.Context, item *models.Contract) error
	GetContractByID(ctx context.Context, id uint64) (*models.Contract, error)
	ListContracts(ctx context.Context, params ListContractsParams) ([]models.Contract, error)
	CountContracts(ctx context.Context, params ListContractsParams) (int64, error)
	UpdateContractStatus(ctx context.Context, id uint64, status string) error

	// Settlements
	InsertSettlement(ctx context.Context, item *models.Settlement) error
	ListSettlements(ctx context.Context, params ListSettlementsParams) ([]models.Settlement, error)
	CountSettlements(ctx context.Context, params ListSettlementsParams) (int64, error)

	// Market quotes
	InsertMarketQuote(ctx context.Context, item *models.MarketQuote) error
	ListMarketQuotes(ctx context.Context, params ListMarketQuotesParams) ([]models.MarketQuote, error)
	LatestMarketQuote(ctx context.Context, province, marketType string) (*models.MarketQuote, error)

	// Notifications
	InsertNotification(ctx context.Context, item *models.Notification) error
	ListNotifications(ctx context.Context, params ListNotificationsParams) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, ownerID uint64) (int64, error)
	MarkNotificationRead(ctx context.Context, id uint64, readAt time.Time) error
	MarkAllNotificationsRead(ctx context.Context, ownerID uint64, readAt time.Time) (int64, error)

	// Users
	CreateUser(ctx context.Context, item *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserLastLogin(ctx context.Context, id uint64, at time.Time) error

	// API keys
	InsertAPIKey(ctx context.Context, item *models.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context, ownerID uint64) ([]models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uint64, at time.Time) error
	TouchAPIKey(ctx context.Context, id uint64, at time.Time) error

	// IP filters
	InsertIPFilter(ctx context.Context, item *models.IPFilter) error
	ListIPFilters(ctx context.Context, activeOnly bool) ([]models.IPFilter, error)
	DeleteIPFilter(ctx context.Context, id uint64) error

	// Backups
	InsertBackupRecord(ctx context.Context, item *models.BackupRecord) error
	UpdateBackupRecord(ctx context.Context, id uint64, updates map[string]any) error
	ListBackupRecords(ctx context.Context, params ListBackupRecordsParams) ([]models.BackupRecord, error)

	// Dashboard
	DashboardStats(ctx context.Context, ownerID uint64, dayStart time.Time) (DashboardStats, error)
}
