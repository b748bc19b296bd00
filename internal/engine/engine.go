package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"powerx/internal/config"
	"powerx/internal/dispatch"
	"powerx/internal/marketdata"
	"powerx/internal/models"
	"powerx/internal/repository"
)

// IndicatorEvaluator resolves INDICATOR conditions described by opaque
// parameters. A nil evaluator or an error means the condition does not fire.
type IndicatorEvaluator interface {
	Evaluate(ctx context.Context, params []byte, quote marketdata.Quote) (bool, error)
}

// Engine is the single evaluation authority for rules and conditional orders.
// Tick serializes passes behind a mutex so two overlapping schedules cannot
// double-fire a rule inside one min-interval window.
type Engine struct {
	Repo       repository.Repository
	Feed       marketdata.Feed
	Dispatcher dispatch.Dispatcher
	Indicators IndicatorEvaluator
	Logger     *zap.Logger
	Config     config.EngineConfig

	// Default scope for rules that declare none.
	Provinces   []string
	MarketTypes []string

	mu  sync.Mutex
	now func() time.Time
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now().UTC()
}

// Tick runs one full evaluation pass. One entity's failure never aborts the
// rest of the pass.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.evaluateRules(ctx); err != nil && e.Logger != nil {
		e.Logger.Warn("rule evaluation pass failed", zap.Error(err))
	}
	if err := e.evaluateConditionalOrders(ctx); err != nil && e.Logger != nil {
		e.Logger.Warn("conditional order pass failed", zap.Error(err))
	}
}

// ResetDailyCounters clears todayExecutionCount on every rule. Driven by the
// midnight cron entry in the market timezone.
func (e *Engine) ResetDailyCounters(ctx context.Context) {
	n, err := e.Repo.ResetTodayExecutionCounts(ctx)
	if e.Logger == nil {
		return
	}
	if err != nil {
		e.Logger.Warn("daily counter reset failed", zap.Error(err))
		return
	}
	e.Logger.Info("daily execution counters reset", zap.Int64("rules", n))
}

func (e *Engine) evaluateRules(ctx context.Context) error {
	limit := e.Config.MaxRulesPerTick
	if limit <= 0 {
		limit = 200
	}
	rules, err := e.Repo.ListActiveRules(ctx, limit)
	if err != nil {
		return err
	}
	quotes := newQuoteCache(e.Feed, e.Config.QuoteTimeout)
	for i := range rules {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.evaluateRule(ctx, &rules[i], quotes); err != nil && e.Logger != nil {
			e.Logger.Warn("rule evaluation failed",
				zap.Uint64("rule_id", rules[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule *models.Rule, quotes *quoteCache) error {
	now := e.clock()

	// Rate-limit gate. A skip here is not an evaluation attempt: no record.
	if !rule.CanExecute(now) {
		return nil
	}

	cond, err := ParseCondition(rule.ConditionExpr)
	if err != nil {
		// Malformed expression: treated as false, the rule keeps running.
		if e.Logger != nil {
			e.Logger.Warn("malformed rule condition",
				zap.Uint64("rule_id", rule.ID), zap.Error(err))
		}
		return nil
	}

	params := decodeJSONMap(rule.ConditionParams)
	for _, scope := range e.ruleScopes(rule) {
		quote, ok := quotes.get(ctx, scope.province, scope.marketType)
		if !ok {
			continue
		}
		evalCtx := evaluationContext(quote, now, params)
		fired, trace := Evaluate(cond, evalCtx)
		if !fired {
			continue
		}
		return e.fireRule(ctx, rule, quote, trace, now)
	}
	return nil
}

// fireRule dispatches the rule action and records the attempt. Dispatch
// failure is recorded but not retried within this pass.
func (e *Engine) fireRule(ctx context.Context, rule *models.Rule, quote marketdata.Quote, trace []LeafResult, now time.Time) error {
	actionParams := decodeJSONMap(rule.ActionParams)
	if _, ok := actionParams["province"]; !ok {
		actionParams["province"] = quote.Province
	}
	if _, ok := actionParams["market_type"]; !ok {
		actionParams["market_type"] = quote.MarketType
	}
	if _, ok := actionParams["owner_id"]; !ok {
		actionParams["owner_id"] = float64(rule.OwnerID)
	}

	timeout := e.Config.DispatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	result, dispatchErr := e.Dispatcher.Dispatch(dctx, rule.ActionType, actionParams)
	cancel()

	exec := &models.RuleExecution{
		RuleID:           rule.ID,
		Success:          dispatchErr == nil && result.Success,
		ConditionResults: mustJSON(trace),
		TriggerData: mustJSON(map[string]any{
			"province":    quote.Province,
			"market_type": quote.MarketType,
			"price":       quote.Price,
			"volume":      quote.Volume,
			"quoted_at":   quote.Timestamp,
		}),
		ExecutedAt: now,
	}
	if dispatchErr != nil {
		exec.ErrorMessage = dispatchErr.Error()
	} else {
		exec.ActionResult = mustJSON(result)
	}
	if err := e.Repo.InsertRuleExecution(ctx, exec); err != nil {
		return err
	}

	if exec.Success {
		if err := e.Repo.MarkRuleExecuted(ctx, rule.ID, now); err != nil {
			return err
		}
		if e.Logger != nil {
			e.Logger.Info("rule executed",
				zap.Uint64("rule_id", rule.ID),
				zap.String("action", rule.ActionType),
				zap.String("province", quote.Province))
		}
	}
	return dispatchErr
}

// TriggerRule fires a rule immediately, bypassing its condition but not its
// rate-limit gate. Used by the manual trigger endpoint.
func (e *Engine) TriggerRule(ctx context.Context, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, err := e.Repo.GetRuleByID(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("rule %d not found", id)
	}
	now := e.clock()
	if !rule.CanExecute(now) {
		return fmt.Errorf("rule %d is not executable (inactive or rate limited)", id)
	}
	quotes := newQuoteCache(e.Feed, e.Config.QuoteTimeout)
	for _, scope := range e.ruleScopes(rule) {
		quote, ok := quotes.get(ctx, scope.province, scope.marketType)
		if !ok {
			continue
		}
		return e.fireRule(ctx, rule, quote, nil, now)
	}
	return fmt.Errorf("no market data available for rule %d", id)
}

type ruleScope struct {
	province   string
	marketType string
}

// ruleScopes expands a rule's province/market-type filters, defaulting to the
// engine-wide scope when a filter is empty.
func (e *Engine) ruleScopes(rule *models.Rule) []ruleScope {
	provinces := decodeStringList(rule.Provinces)
	if len(provinces) == 0 {
		provinces = e.Provinces
	}
	marketTypes := decodeStringList(rule.MarketTypes)
	if len(marketTypes) == 0 {
		marketTypes = e.MarketTypes
	}
	scopes := make([]ruleScope, 0, len(provinces)*len(marketTypes))
	for _, p := range provinces {
		for _, mt := range marketTypes {
			scopes = append(scopes, ruleScope{province: p, marketType: mt})
		}
	}
	return scopes
}

// evaluationContext is the field namespace leaf conditions resolve against.
func evaluationContext(quote marketdata.Quote, now time.Time, extra map[string]any) map[string]any {
	ctx := map[string]any{
		"price":       quote.Price,
		"volume":      quote.Volume,
		"province":    quote.Province,
		"market_type": quote.MarketType,
		"hour":        float64(now.Hour()),
		"minute":      float64(now.Minute()),
		"weekday":     float64(now.Weekday()),
		"timestamp":   now,
	}
	for k, v := range extra {
		if _, exists := ctx[k]; !exists {
			ctx[k] = v
		}
	}
	return ctx
}

// quoteCache memoizes feed lookups within one pass so every rule in a tick
// sees the same snapshot.
type quoteCache struct {
	feed    marketdata.Feed
	timeout time.Duration
	quotes  map[string]marketdata.Quote
	misses  map[string]bool
}

func newQuoteCache(feed marketdata.Feed, timeout time.Duration) *quoteCache {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &quoteCache{
		feed:    feed,
		timeout: timeout,
		quotes:  map[string]marketdata.Quote{},
		misses:  map[string]bool{},
	}
}

func (c *quoteCache) get(ctx context.Context, province, marketType string) (marketdata.Quote, bool) {
	key := province + "|" + marketType
	if q, ok := c.quotes[key]; ok {
		return q, true
	}
	if c.misses[key] {
		return marketdata.Quote{}, false
	}
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	q, err := c.feed.CurrentQuote(qctx, province, marketType)
	cancel()
	if err != nil {
		c.misses[key] = true
		return marketdata.Quote{}, false
	}
	c.quotes[key] = q
	return q, true
}

func decodeJSONMap(raw datatypes.JSON) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}
