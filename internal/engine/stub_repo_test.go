package engine

import (
	"context"
	"fmt"
	"time"

	"powerx/internal/dispatch"
	"powerx/internal/marketdata"
	"powerx/internal/models"
	"powerx/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the engine-facing subset has real
// behavior.
type stubRepo struct {
	rules      []models.Rule
	executions []models.RuleExecution
	condOrders []models.ConditionalOrder
	logs       []models.TriggerLog
	nextLogID  uint64
}

func (s *stubRepo) findRule(id uint64) *models.Rule {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return &s.rules[i]
		}
	}
	return nil
}

func (s *stubRepo) findCondOrder(id uint64) *models.ConditionalOrder {
	for i := range s.condOrders {
		if s.condOrders[i].ID == id {
			return &s.condOrders[i]
		}
	}
	return nil
}

func (s *stubRepo) InsertRule(ctx context.Context, item *models.Rule) error { return nil }
func (s *stubRepo) GetRuleByID(ctx context.Context, id uint64) (*models.Rule, error) {
	return s.findRule(id), nil
}
func (s *stubRepo) ListRules(ctx context.Context, params repository.ListRulesParams) ([]models.Rule, error) {
	return s.rules, nil
}
func (s *stubRepo) CountRules(ctx context.Context, params repository.ListRulesParams) (int64, error) {
	return int64(len(s.rules)), nil
}
func (s *stubRepo) UpdateRule(ctx context.Context, id uint64, updates map[string]any) error {
	return nil
}
func (s *stubRepo) UpdateRuleStatus(ctx context.Context, id uint64, status string) error {
	if r := s.findRule(id); r != nil {
		r.Status = status
	}
	return nil
}
func (s *stubRepo) DeleteRule(ctx context.Context, id uint64) error { return nil }
func (s *stubRepo) ListActiveRules(ctx context.Context, limit int) ([]models.Rule, error) {
	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Status == models.RuleStatusActive {
			out = append(out, r)
		}
	}
	return out, nil
}
func (s *stubRepo) MarkRuleExecuted(ctx context.Context, id uint64, executedAt time.Time) error {
	r := s.findRule(id)
	if r == nil {
		return fmt.Errorf("rule %d not found", id)
	}
	r.ExecutionCount++
	r.TodayExecutionCount++
	at := executedAt
	r.LastExecutedAt = &at
	return nil
}
func (s *stubRepo) ResetTodayExecutionCounts(ctx context.Context) (int64, error) {
	var n int64
	for i := range s.rules {
		if s.rules[i].TodayExecutionCount > 0 {
			s.rules[i].TodayExecutionCount = 0
			n++
		}
	}
	return n, nil
}
func (s *stubRepo) InsertRuleExecution(ctx context.Context, item *models.RuleExecution) error {
	item.ID = uint64(len(s.executions) + 1)
	s.executions = append(s.executions, *item)
	return nil
}
func (s *stubRepo) ListRuleExecutions(ctx context.Context, params repository.ListRuleExecutionsParams) ([]models.RuleExecution, error) {
	return s.executions, nil
}
func (s *stubRepo) CountRuleExecutions(ctx context.Context, params repository.ListRuleExecutionsParams) (int64, error) {
	return int64(len(s.executions)), nil
}

func (s *stubRepo) InsertConditionalOrder(ctx context.Context, item *models.ConditionalOrder) error {
	return nil
}
func (s *stubRepo) GetConditionalOrderByID(ctx context.Context, id uint64) (*models.ConditionalOrder, error) {
	return s.findCondOrder(id), nil
}
func (s *stubRepo) ListConditionalOrders(ctx context.Context, params repository.ListConditionalOrdersParams) ([]models.ConditionalOrder, error) {
	out := make([]models.ConditionalOrder, 0, len(s.condOrders))
	for _, o := range s.condOrders {
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
func (s *stubRepo) CountConditionalOrders(ctx context.Context, params repository.ListConditionalOrdersParams) (int64, error) {
	return int64(len(s.condOrders)), nil
}
func (s *stubRepo) ListPendingConditionalOrders(ctx context.Context, limit int) ([]models.ConditionalOrder, error) {
	out := make([]models.ConditionalOrder, 0, len(s.condOrders))
	for _, o := range s.condOrders {
		if o.Status == models.CondOrderPending && o.Enabled {
			out = append(out, o)
		}
	}
	return out, nil
}
func (s *stubRepo) UpdateConditionalOrder(ctx context.Context, id uint64, updates map[string]any) error {
	o := s.findCondOrder(id)
	if o == nil {
		return fmt.Errorf("conditional order %d not found", id)
	}
	if v, ok := updates["status"].(string); ok {
		o.Status = v
	}
	if v, ok := updates["enabled"].(bool); ok {
		o.Enabled = v
	}
	if v, ok := updates["error_message"].(string); ok {
		o.ErrorMessage = v
	}
	if v, ok := updates["executed_order_id"].(uint64); ok {
		o.ExecutedOrderID = &v
	}
	return nil
}
func (s *stubRepo) DeleteConditionalOrder(ctx context.Context, id uint64) error { return nil }

func (s *stubRepo) InsertTriggerLog(ctx context.Context, item *models.TriggerLog) error {
	s.nextLogID++
	item.ID = s.nextLogID
	s.logs = append(s.logs, *item)
	return nil
}
func (s *stubRepo) UpdateTriggerLogResult(ctx context.Context, id uint64, success bool, message string) error {
	for i := range s.logs {
		if s.logs[i].ID == id {
			s.logs[i].Success = success
			s.logs[i].Message = message
			return nil
		}
	}
	return fmt.Errorf("trigger log %d not found", id)
}
func (s *stubRepo) ListTriggerLogs(ctx context.Context, params repository.ListTriggerLogsParams) ([]models.TriggerLog, error) {
	return s.logs, nil
}

func (s *stubRepo) InsertOrder(ctx context.Context, item *models.Order) error { return nil }
func (s *stubRepo) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	return nil, nil
}
func (s *stubRepo) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	return nil, nil
}
func (s *stubRepo) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id uint64, status string, updates map[string]any) error {
	return nil
}

func (s *stubRepo) InsertContract(ctx context.Context, item *models.Contract) error { return nil }
func (s *stubRepo) GetContractByID(ctx context.Context, id uint64) (*models.Contract, error) {
	return nil, nil
}
func (s *stubRepo) ListContracts(ctx context.Context, params repository.ListContractsParams) ([]models.Contract, error) {
	return nil, nil
}
func (s *stubRepo) CountContracts(ctx context.Context, params repository.ListContractsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) UpdateContractStatus(ctx context.Context, id uint64, status string) error {
	return nil
}

func (s *stubRepo) InsertSettlement(ctx context.Context, item *models.Settlement) error { return nil }
func (s *stubRepo) ListSettlements(ctx context.Context, params repository.ListSettlementsParams) ([]models.Settlement, error) {
	return nil, nil
}
func (s *stubRepo) CountSettlements(ctx context.Context, params repository.ListSettlementsParams) (int64, error) {
	return 0, nil
}

func (s *stubRepo) InsertMarketQuote(ctx context.Context, item *models.MarketQuote) error { return nil }
func (s *stubRepo) ListMarketQuotes(ctx context.Context, params repository.ListMarketQuotesParams) ([]models.MarketQuote, error) {
	return nil, nil
}
func (s *stubRepo) LatestMarketQuote(ctx context.Context, province, marketType string) (*models.MarketQuote, error) {
	return nil, nil
}

func (s *stubRepo) InsertNotification(ctx context.Context, item *models.Notification) error {
	return nil
}
func (s *stubRepo) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.Notification, error) {
	return nil, nil
}
func (s *stubRepo) CountUnreadNotifications(ctx context.Context, ownerID uint64) (int64, error) {
	return 0, nil
}
func (s *stubRepo) MarkNotificationRead(ctx context.Context, id uint64, readAt time.Time) error {
	return nil
}
func (s *stubRepo) MarkAllNotificationsRead(ctx context.Context, ownerID uint64, readAt time.Time) (int64, error) {
	return 0, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, item *models.User) error { return nil }
func (s *stubRepo) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	return nil, nil
}
func (s *stubRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, nil
}
func (s *stubRepo) UpdateUserLastLogin(ctx context.Context, id uint64, at time.Time) error {
	return nil
}

func (s *stubRepo) InsertAPIKey(ctx context.Context, item *models.APIKey) error { return nil }
func (s *stubRepo) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	return nil, nil
}
func (s *stubRepo) ListAPIKeys(ctx context.Context, ownerID uint64) ([]models.APIKey, error) {
	return nil, nil
}
func (s *stubRepo) RevokeAPIKey(ctx context.Context, id uint64, at time.Time) error { return nil }
func (s *stubRepo) TouchAPIKey(ctx context.Context, id uint64, at time.Time) error  { return nil }

func (s *stubRepo) InsertIPFilter(ctx context.Context, item *models.IPFilter) error { return nil }
func (s *stubRepo) ListIPFilters(ctx context.Context, activeOnly bool) ([]models.IPFilter, error) {
	return nil, nil
}
func (s *stubRepo) DeleteIPFilter(ctx context.Context, id uint64) error { return nil }

func (s *stubRepo) InsertBackupRecord(ctx context.Context, item *models.BackupRecord) error {
	return nil
}
func (s *stubRepo) UpdateBackupRecord(ctx context.Context, id uint64, updates map[string]any) error {
	return nil
}
func (s *stubRepo) ListBackupRecords(ctx context.Context, params repository.ListBackupRecordsParams) ([]models.BackupRecord, error) {
	return nil, nil
}

func (s *stubRepo) DashboardStats(ctx context.Context, ownerID uint64, dayStart time.Time) (repository.DashboardStats, error) {
	return repository.DashboardStats{}, nil
}

// stubFeed serves fixed quotes and errors on anything unconfigured.
type stubFeed struct {
	quotes map[string]marketdata.Quote
}

func (f *stubFeed) CurrentQuote(ctx context.Context, province, marketType string) (marketdata.Quote, error) {
	q, ok := f.quotes[province+"|"+marketType]
	if !ok {
		return marketdata.Quote{}, fmt.Errorf("no quote for %s/%s", province, marketType)
	}
	return q, nil
}

// stubDispatcher records calls and returns a canned result.
type stubDispatcher struct {
	calls   []dispatchCall
	fail    bool
	payload map[string]any
}

type dispatchCall struct {
	actionType string
	params     map[string]any
}

func (d *stubDispatcher) Dispatch(ctx context.Context, actionType string, params map[string]any) (dispatch.Result, error) {
	d.calls = append(d.calls, dispatchCall{actionType: actionType, params: params})
	if d.fail {
		return dispatch.Result{}, fmt.Errorf("dispatch refused")
	}
	payload := d.payload
	if payload == nil {
		payload = map[string]any{"order_id": uint64(42)}
	}
	return dispatch.Result{Success: true, Payload: payload}, nil
}
