package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"powerx/internal/marketdata"
	"powerx/internal/models"
	"powerx/internal/repository"
)

func (e *Engine) evaluateConditionalOrders(ctx context.Context) error {
	limit := e.Config.MaxOrdersPerTick
	if limit <= 0 {
		limit = 200
	}
	orders, err := e.Repo.ListPendingConditionalOrders(ctx, limit)
	if err != nil {
		return err
	}
	quotes := newQuoteCache(e.Feed, e.Config.QuoteTimeout)
	for i := range orders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.evaluateConditionalOrder(ctx, &orders[i], quotes); err != nil && e.Logger != nil {
			e.Logger.Warn("conditional order evaluation failed",
				zap.Uint64("conditional_order_id", orders[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) evaluateConditionalOrder(ctx context.Context, order *models.ConditionalOrder, quotes *quoteCache) error {
	now := e.clock()

	// Expiry is housekeeping, not a trigger attempt: no log entry.
	if order.IsExpired(now) {
		return e.Repo.UpdateConditionalOrder(ctx, order.ID, map[string]any{
			"status": models.CondOrderExpired,
		})
	}
	if !order.CanTrigger(now) {
		return nil
	}

	quote, ok := quotes.get(ctx, order.Province, order.MarketType)
	if !ok {
		// Absent market data never fires a condition.
		return nil
	}
	if !e.conditionMet(ctx, order, quote, now) {
		return nil
	}
	return e.fireConditionalOrder(ctx, order, quote, now)
}

// SweepExpired expires lapsed PENDING orders, including disabled ones the
// tick never lists. Expiry is housekeeping: no trigger log is written.
func (e *Engine) SweepExpired(ctx context.Context) {
	status := models.CondOrderPending
	orders, err := e.Repo.ListConditionalOrders(ctx, repository.ListConditionalOrdersParams{
		Status: &status,
		Limit:  1000,
	})
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("expiry sweep list failed", zap.Error(err))
		}
		return
	}
	now := e.clock()
	expired := 0
	for i := range orders {
		if !orders[i].IsExpired(now) {
			continue
		}
		if err := e.Repo.UpdateConditionalOrder(ctx, orders[i].ID, map[string]any{
			"status": models.CondOrderExpired,
		}); err != nil {
			if e.Logger != nil {
				e.Logger.Warn("expiry sweep update failed",
					zap.Uint64("conditional_order_id", orders[i].ID), zap.Error(err))
			}
			continue
		}
		expired++
	}
	if expired > 0 && e.Logger != nil {
		e.Logger.Info("conditional orders expired", zap.Int("count", expired))
	}
}

func (e *Engine) conditionMet(ctx context.Context, order *models.ConditionalOrder, quote marketdata.Quote, now time.Time) bool {
	switch order.ConditionType {
	case models.CondPriceAbove:
		if order.TriggerPrice == nil {
			return false
		}
		threshold, _ := order.TriggerPrice.Float64()
		return quote.Price > threshold
	case models.CondPriceBelow:
		if order.TriggerPrice == nil {
			return false
		}
		threshold, _ := order.TriggerPrice.Float64()
		return quote.Price < threshold
	case models.CondPriceChangePct:
		if order.TriggerChangePct == nil || order.ReferencePrice == nil {
			return false
		}
		ref, _ := order.ReferencePrice.Float64()
		if ref == 0 {
			return false
		}
		change := (quote.Price - ref) / ref * 100
		if change < 0 {
			change = -change
		}
		return change >= *order.TriggerChangePct
	case models.CondTimeTrigger:
		return order.TriggerTime != nil && !now.Before(*order.TriggerTime)
	case models.CondVolumeAbove:
		if order.TriggerVolume == nil {
			return false
		}
		threshold, _ := order.TriggerVolume.Float64()
		return quote.Volume > threshold
	case models.CondIndicator:
		if e.Indicators == nil || len(order.ConditionParams) == 0 {
			return false
		}
		fired, err := e.Indicators.Evaluate(ctx, order.ConditionParams, quote)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn("indicator evaluation failed",
					zap.Uint64("conditional_order_id", order.ID), zap.Error(err))
			}
			return false
		}
		return fired
	}
	return false
}

// fireConditionalOrder performs the one-shot PENDING → TRIGGERED → EXECUTED |
// FAILED transition. The order never re-enters PENDING afterwards.
func (e *Engine) fireConditionalOrder(ctx context.Context, order *models.ConditionalOrder, quote marketdata.Quote, now time.Time) error {
	if err := e.Repo.UpdateConditionalOrder(ctx, order.ID, map[string]any{
		"status":          models.CondOrderTriggered,
		"triggered_at":    now,
		"triggered_price": quote.Price,
	}); err != nil {
		return err
	}

	log := &models.TriggerLog{
		ConditionalOrderID: order.ID,
		MarketSnapshot: mustJSON(map[string]any{
			"province":    quote.Province,
			"market_type": quote.MarketType,
			"price":       quote.Price,
			"volume":      quote.Volume,
			"quoted_at":   quote.Timestamp,
		}),
		Message:     "condition met: " + order.ConditionType,
		TriggeredAt: now,
	}
	if err := e.Repo.InsertTriggerLog(ctx, log); err != nil {
		return err
	}

	price := quote.Price
	if order.PriceType == "limit" && order.LimitPrice != nil {
		price, _ = order.LimitPrice.Float64()
	}
	quantity, _ := order.Quantity.Float64()
	params := map[string]any{
		"province":    order.Province,
		"market_type": order.MarketType,
		"direction":   order.Direction,
		"price":       price,
		"quantity":    quantity,
		"owner_id":    float64(order.OwnerID),
		"source":      "conditional",
	}

	timeout := e.Config.DispatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	result, dispatchErr := e.Dispatcher.Dispatch(dctx, models.ActionPlaceOrder, params)
	cancel()

	if dispatchErr != nil || !result.Success {
		msg := "order placement failed"
		if dispatchErr != nil {
			msg = dispatchErr.Error()
		}
		_ = e.Repo.UpdateTriggerLogResult(ctx, log.ID, false, msg)
		return e.Repo.UpdateConditionalOrder(ctx, order.ID, map[string]any{
			"status":        models.CondOrderFailed,
			"error_message": msg,
		})
	}

	updates := map[string]any{
		"status":           models.CondOrderExecuted,
		"execution_result": mustJSON(result.Payload),
	}
	if id, ok := result.Payload["order_id"].(uint64); ok {
		updates["executed_order_id"] = id
	}
	if err := e.Repo.UpdateConditionalOrder(ctx, order.ID, updates); err != nil {
		return err
	}
	if err := e.Repo.UpdateTriggerLogResult(ctx, log.ID, true, "order placed"); err != nil {
		return err
	}
	if e.Logger != nil {
		e.Logger.Info("conditional order executed",
			zap.Uint64("conditional_order_id", order.ID),
			zap.String("condition", order.ConditionType),
			zap.Float64("triggered_price", quote.Price))
	}
	return nil
}
