package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"powerx/internal/market"
	"powerx/internal/models"
	"powerx/internal/repository"
)

// Result is the outcome of a dispatched action.
type Result struct {
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Dispatcher executes rule/conditional-order actions as opaque side effects.
// Implementations must be safe to retry; the engine does not assume
// exactly-once delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, actionType string, params map[string]any) (Result, error)
}

// SimDispatcher places simulated orders and alerts through the repository.
// There is no exchange connectivity; a placed order is bookkeeping only.
type SimDispatcher struct {
	Repo      repository.Repository
	Validator *market.Validator
	Logger    *zap.Logger
	AutoFill  bool
}

func (d *SimDispatcher) Dispatch(ctx context.Context, actionType string, params map[string]any) (Result, error) {
	switch actionType {
	case models.ActionPlaceOrder:
		return d.placeOrder(ctx, params)
	case models.ActionSendAlert:
		return d.sendAlert(ctx, params)
	case models.ActionCancelOrder:
		return d.cancelOrder(ctx, params)
	case models.ActionAdjustPosition, models.ActionExecuteStrategy:
		// Simulated: acknowledged without side effects.
		return Result{Success: true, Payload: map[string]any{"simulated": true, "action": actionType}}, nil
	}
	return Result{}, fmt.Errorf("unknown action type %q", actionType)
}

func (d *SimDispatcher) placeOrder(ctx context.Context, params map[string]any) (Result, error) {
	province := paramString(params, "province")
	marketType := paramString(params, "market_type")
	if marketType == "" {
		marketType = "day_ahead"
	}
	direction := strings.ToLower(paramString(params, "direction"))
	if direction == "" {
		direction = models.OrderDirectionBuy
	}
	price, ok := paramFloat(params, "price")
	if !ok {
		return Result{}, fmt.Errorf("place order: missing price")
	}
	quantity, ok := paramFloat(params, "quantity")
	if !ok {
		return Result{}, fmt.Errorf("place order: missing quantity")
	}
	ownerID, _ := paramUint(params, "owner_id")

	if d.Validator != nil {
		verdict := d.Validator.ValidateOrderAdmission(province, marketType, price, quantity)
		if !verdict.Valid {
			return Result{Success: false, Payload: map[string]any{"errors": verdict.Errors}},
				fmt.Errorf("order rejected: %s", strings.Join(verdict.Errors, "; "))
		}
	}

	order := &models.Order{
		OwnerID:    ownerID,
		Province:   province,
		MarketType: marketType,
		Direction:  direction,
		PriceType:  "limit",
		Price:      decimal.NewFromFloat(price),
		Quantity:   decimal.NewFromFloat(quantity),
		Status:     models.OrderStatusPending,
		Source:     paramStringDefault(params, "source", "rule"),
	}
	if err := d.Repo.InsertOrder(ctx, order); err != nil {
		return Result{}, err
	}
	if d.AutoFill {
		now := time.Now().UTC()
		if err := d.Repo.UpdateOrderStatus(ctx, order.ID, models.OrderStatusFilled, map[string]any{"filled_at": now}); err != nil && d.Logger != nil {
			d.Logger.Warn("auto fill failed", zap.Uint64("order_id", order.ID), zap.Error(err))
		}
	}
	return Result{Success: true, Payload: map[string]any{"order_id": order.ID}}, nil
}

func (d *SimDispatcher) sendAlert(ctx context.Context, params map[string]any) (Result, error) {
	ownerID, _ := paramUint(params, "owner_id")
	level := paramStringDefault(params, "level", models.NotifyLevelInfo)
	title := paramStringDefault(params, "title", "规则告警")
	body := paramString(params, "message")

	payload, _ := json.Marshal(params)
	item := &models.Notification{
		OwnerID: ownerID,
		Level:   level,
		Title:   title,
		Body:    body,
		Source:  paramStringDefault(params, "source", "rule"),
		Payload: datatypes.JSON(payload),
	}
	if err := d.Repo.InsertNotification(ctx, item); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Payload: map[string]any{"notification_id": item.ID}}, nil
}

func (d *SimDispatcher) cancelOrder(ctx context.Context, params map[string]any) (Result, error) {
	orderID, ok := paramUint(params, "order_id")
	if !ok || orderID == 0 {
		return Result{}, fmt.Errorf("cancel order: missing order_id")
	}
	order, err := d.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	if order == nil {
		return Result{}, fmt.Errorf("cancel order: order %d not found", orderID)
	}
	if order.Status != models.OrderStatusPending {
		return Result{Success: false, Payload: map[string]any{"status": order.Status}},
			fmt.Errorf("cancel order: order %d is %s", orderID, order.Status)
	}
	now := time.Now().UTC()
	if err := d.Repo.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled, map[string]any{"cancelled_at": now}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Payload: map[string]any{"order_id": orderID}}, nil
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func paramStringDefault(params map[string]any, key, def string) string {
	if v := paramString(params, key); v != "" {
		return v
	}
	return def
}

func paramFloat(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		f, _ := d.Float64()
		return f, true
	}
	return 0, false
}

func paramUint(params map[string]any, key string) (uint64, bool) {
	f, ok := paramFloat(params, key)
	if !ok || f < 0 {
		return 0, false
	}
	return uint64(f), true
}
