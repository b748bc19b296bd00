package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"powerx/internal/models"
	"powerx/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Rules -------------------------------------------------------------------

func (s *Store) InsertRule(ctx context.Context, item *models.Rule) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetRuleByID(ctx context.Context, id uint64) (*models.Rule, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Rule
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) rulesQuery(ctx context.Context, params repository.ListRulesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Rule{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	} else {
		query = query.Where("status <> ?", models.RuleStatusDeleted)
	}
	return query
}

func (s *Store) ListRules(ctx context.Context, params repository.ListRulesParams) ([]models.Rule, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(s.rulesQuery(ctx, params), params.OrderBy, params.Asc, "created_at")
	var items []models.Rule
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRules(ctx context.Context, params repository.ListRulesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.rulesQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) UpdateRule(ctx context.Context, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Rule{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) UpdateRuleStatus(ctx context.Context, id uint64, status string) error {
	return s.UpdateRule(ctx, id, map[string]any{"status": status})
}

func (s *Store) DeleteRule(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	// Execution history goes with the rule (cascade).
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&models.RuleExecution{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Rule{}, "id = ?", id).Error
	})
}

func (s *Store) ListActiveRules(ctx context.Context, limit int) ([]models.Rule, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Rule
	err := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("status = ?", models.RuleStatusActive).
		Order("priority desc, id asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkRuleExecuted(ctx context.Context, id uint64, executedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"execution_count":       gorm.Expr("execution_count + 1"),
			"today_execution_count": gorm.Expr("today_execution_count + 1"),
			"last_executed_at":      executedAt,
		}).Error
}

func (s *Store) ResetTodayExecutionCounts(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("today_execution_count > 0").
		Update("today_execution_count", 0)
	return res.RowsAffected, res.Error
}

func (s *Store) InsertRuleExecution(ctx context.Context, item *models.RuleExecution) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) executionsQuery(ctx context.Context, params repository.ListRuleExecutionsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.RuleExecution{})
	if params.RuleID != nil {
		query = query.Where("rule_id = ?", *params.RuleID)
	}
	if params.Success != nil {
		query = query.Where("success = ?", *params.Success)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("executed_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) ListRuleExecutions(ctx context.Context, params repository.ListRuleExecutionsParams) ([]models.RuleExecution, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RuleExecution
	err := s.executionsQuery(ctx, params).
		Order("executed_at desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRuleExecutions(ctx context.Context, params repository.ListRuleExecutionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.executionsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- Conditional orders ------------------------------------------------------

func (s *Store) InsertConditionalOrder(ctx context.Context, item *models.ConditionalOrder) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetConditionalOrderByID(ctx context.Context, id uint64) (*models.ConditionalOrder, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ConditionalOrder
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) conditionalOrdersQuery(ctx context.Context, params repository.ListConditionalOrdersParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ConditionalOrder{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Province != nil && strings.TrimSpace(*params.Province) != "" {
		query = query.Where("province = ?", strings.TrimSpace(*params.Province))
	}
	return query
}

func (s *Store) ListConditionalOrders(ctx context.Context, params repository.ListConditionalOrdersParams) ([]models.ConditionalOrder, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(s.conditionalOrdersQuery(ctx, params), params.OrderBy, params.Asc, "created_at")
	var items []models.ConditionalOrder
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountConditionalOrders(ctx context.Context, params repository.ListConditionalOrdersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.conditionalOrdersQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListPendingConditionalOrders(ctx context.Context, limit int) ([]models.ConditionalOrder, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ConditionalOrder
	err := s.db.WithContext(ctx).
		Model(&models.ConditionalOrder{}).
		Where("status = ? AND enabled = ?", models.CondOrderPending, true).
		Order("id asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateConditionalOrder(ctx context.Context, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.ConditionalOrder{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) DeleteConditionalOrder(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conditional_order_id = ?", id).Delete(&models.TriggerLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ConditionalOrder{}, "id = ?", id).Error
	})
}

func (s *Store) InsertTriggerLog(ctx context.Context, item *models.TriggerLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateTriggerLogResult(ctx context.Context, id uint64, success bool, message string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.TriggerLog{}).
		Where("id = ?", id).
		Updates(map[string]any{"success": success, "message": message}).Error
}

func (s *Store) ListTriggerLogs(ctx context.Context, params repository.ListTriggerLogsParams) ([]models.TriggerLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TriggerLog{})
	if params.ConditionalOrderID != nil {
		query = query.Where("conditional_order_id = ?", *params.ConditionalOrderID)
	}
	var items []models.TriggerLog
	err := query.
		Order("triggered_at desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Orders ------------------------------------------------------------------

func (s *Store) InsertOrder(ctx context.Context, item *models.Order) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Order
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ordersQuery(ctx context.Context, params repository.ListOrdersParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Province != nil && strings.TrimSpace(*params.Province) != "" {
		query = query.Where("province = ?", strings.TrimSpace(*params.Province))
	}
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	return query
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(s.ordersQuery(ctx, params), params.OrderBy, params.Asc, "created_at")
	var items []models.Order
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.ordersQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id uint64, status string, updates map[string]any) error {
	if s == nil || s.db == nil {
		return nil
	}
	all := map[string]any{"status": status}
	for k, v := range updates {
		all[k] = v
	}
	return s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(all).Error
}

// --- Contracts ---------------------------------------------------------------

func (s *Store) InsertContract(ctx context.Context, item *models.Contract) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetContractByID(ctx context.Context, id uint64) (*models.Contract, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Contract
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) contractsQuery(ctx context.Context, params repository.ListContractsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Contract{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Province != nil && strings.TrimSpace(*params.Province) != "" {
		query = query.Where("province = ?", strings.TrimSpace(*params.Province))
	}
	return query
}

func (s *Store) ListContracts(ctx context.Context, params repository.ListContractsParams) ([]models.Contract, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Contract
	err := s.contractsQuery(ctx, params).
		Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountContracts(ctx context.Context, params repository.ListContractsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.contractsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) UpdateContractStatus(ctx context.Context, id uint64, status string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Contract{}).Where("id = ?", id).Update("status", status).Error
}

// --- Settlements -------------------------------------------------------------

func (s *Store) InsertSettlement(ctx context.Context, item *models.Settlement) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) settlementsQuery(ctx context.Context, params repository.ListSettlementsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Settlement{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Province != nil && strings.TrimSpace(*params.Province) != "" {
		query = query.Where("province = ?", strings.TrimSpace(*params.Province))
	}
	if params.Day != nil && !params.Day.IsZero() {
		query = query.Where("settlement_day = ?", params.Day.Format("2006-01-02"))
	}
	return query
}

func (s *Store) ListSettlements(ctx context.Context, params repository.ListSettlementsParams) ([]models.Settlement, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Settlement
	err := s.settlementsQuery(ctx, params).
		Order("settlement_day desc, id desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSettlements(ctx context.Context, params repository.ListSettlementsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.settlementsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- Market quotes -----------------------------------------------------------

func (s *Store) InsertMarketQuote(ctx context.Context, item *models.MarketQuote) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListMarketQuotes(ctx context.Context, params repository.ListMarketQuotesParams) ([]models.MarketQuote, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.MarketQuote{})
	if params.Province != nil && strings.TrimSpace(*params.Province) != "" {
		query = query.Where("province = ?", strings.TrimSpace(*params.Province))
	}
	if params.MarketType != nil && strings.TrimSpace(*params.MarketType) != "" {
		query = query.Where("market_type = ?", strings.TrimSpace(*params.MarketType))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("quoted_at >= ?", *params.Since)
	}
	var items []models.MarketQuote
	err := query.
		Order("quoted_at desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LatestMarketQuote(ctx context.Context, province, marketType string) (*models.MarketQuote, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketQuote
	err := s.db.WithContext(ctx).
		Where("province = ? AND market_type = ?", province, marketType).
		Order("quoted_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Notifications -----------------------------------------------------------

func (s *Store) InsertNotification(ctx context.Context, item *models.Notification) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.Notification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Notification{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Level != nil && strings.TrimSpace(*params.Level) != "" {
		query = query.Where("level = ?", strings.TrimSpace(*params.Level))
	}
	if params.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	var items []models.Notification
	err := query.
		Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, ownerID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("owner_id = ? AND read = ?", ownerID, false).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uint64, readAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"read": true, "read_at": readAt}).Error
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, ownerID uint64, readAt time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("owner_id = ? AND read = ?", ownerID, false).
		Updates(map[string]any{"read": true, "read_at": readAt})
	return res.RowsAffected, res.Error
}

// --- Users -------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, item *models.User) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.User
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.User
	err := s.db.WithContext(ctx).First(&item, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateUserLastLogin(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// --- API keys ----------------------------------------------------------------

func (s *Store) InsertAPIKey(ctx context.Context, item *models.APIKey) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.APIKey
	err := s.db.WithContext(ctx).First(&item, "key_hash = ? AND active = ?", hash, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, ownerID uint64) ([]models.APIKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.APIKey
	err := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) RevokeAPIKey(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "revoked_at": at}).Error
}

func (s *Store) TouchAPIKey(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", id).Update("last_used_at", at).Error
}

// --- IP filters --------------------------------------------------------------

func (s *Store) InsertIPFilter(ctx context.Context, item *models.IPFilter) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListIPFilters(ctx context.Context, activeOnly bool) ([]models.IPFilter, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.IPFilter{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var items []models.IPFilter
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteIPFilter(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.IPFilter{}, "id = ?", id).Error
}

// --- Backups -----------------------------------------------------------------

func (s *Store) InsertBackupRecord(ctx context.Context, item *models.BackupRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateBackupRecord(ctx context.Context, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.BackupRecord{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) ListBackupRecords(ctx context.Context, params repository.ListBackupRecordsParams) ([]models.BackupRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BackupRecord{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	var items []models.BackupRecord
	err := query.
		Order("started_at desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Dashboard ---------------------------------------------------------------

func (s *Store) DashboardStats(ctx context.Context, ownerID uint64, dayStart time.Time) (repository.DashboardStats, error) {
	var stats repository.DashboardStats
	if s == nil || s.db == nil {
		return stats, nil
	}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Rule{}).
		Where("owner_id = ? AND status = ?", ownerID, models.RuleStatusActive).
		Count(&stats.ActiveRules).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.ConditionalOrder{}).
		Where("owner_id = ? AND status = ?", ownerID, models.CondOrderPending).
		Count(&stats.PendingConditionalOrders).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.RuleExecution{}).
		Joins("JOIN trading_rules ON trading_rules.id = rule_executions.rule_id").
		Where("trading_rules.owner_id = ? AND rule_executions.executed_at >= ?", ownerID, dayStart).
		Count(&stats.TodayRuleExecutions).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.TriggerLog{}).
		Joins("JOIN conditional_orders ON conditional_orders.id = trigger_logs.conditional_order_id").
		Where("conditional_orders.owner_id = ? AND trigger_logs.triggered_at >= ?", ownerID, dayStart).
		Count(&stats.TodayTriggers).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Order{}).
		Where("owner_id = ? AND status = ?", ownerID, models.OrderStatusPending).
		Count(&stats.OpenOrders).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Order{}).
		Where("owner_id = ? AND status = ? AND filled_at >= ?", ownerID, models.OrderStatusFilled, dayStart).
		Count(&stats.FilledOrdersToday).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Contract{}).
		Where("owner_id = ? AND status = ?", ownerID, "active").
		Count(&stats.ActiveContracts).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Notification{}).
		Where("owner_id = ? AND read = ?", ownerID, false).
		Count(&stats.UnreadNotifications).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, def string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	switch col {
	case "created_at", "updated_at", "priority", "id", "status":
	default:
		col = def
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
