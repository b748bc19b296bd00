package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"powerx/internal/auth"
	"powerx/internal/market"
	"powerx/internal/marketdata"
	"powerx/internal/models"
	"powerx/internal/repository"
)

type ConditionalOrdersHandler struct {
	Repo     repository.Repository
	Feed     marketdata.Feed
	Registry *market.Registry
	Logger   *zap.Logger
}

func (h *ConditionalOrdersHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/conditional-orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/enable", h.setEnabled(true))
	g.POST("/:id/disable", h.setEnabled(false))
	g.DELETE("/:id", h.delete)
	g.GET("/:id/trigger-logs", h.triggerLogs)
}

type conditionalOrderRequest struct {
	ConditionType string `json:"condition_type" binding:"required"`
	Province      string `json:"province" binding:"required"`
	MarketType    string `json:"market_type"`

	TriggerPrice     *float64   `json:"trigger_price"`
	TriggerChangePct *float64   `json:"trigger_change_pct"`
	TriggerTime      *time.Time `json:"trigger_time"`
	TriggerVolume    *float64   `json:"trigger_volume"`

	Direction  string   `json:"direction" binding:"required"`
	Quantity   float64  `json:"quantity" binding:"required"`
	PriceType  string   `json:"price_type"`
	LimitPrice *float64 `json:"limit_price"`

	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (h *ConditionalOrdersHandler) create(c *gin.Context) {
	var req conditionalOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid conditional order payload: "+err.Error())
		return
	}
	if req.MarketType == "" {
		req.MarketType = "day_ahead"
	}
	if req.PriceType == "" {
		req.PriceType = "limit"
	}
	if req.Direction != models.OrderDirectionBuy && req.Direction != models.OrderDirectionSell {
		Error(c, http.StatusBadRequest, "direction must be buy or sell")
		return
	}
	if req.Quantity <= 0 {
		Error(c, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if req.PriceType == "limit" && req.LimitPrice == nil {
		Error(c, http.StatusBadRequest, "limit orders require limit_price")
		return
	}

	order := &models.ConditionalOrder{
		OwnerID:       auth.UserID(c),
		ConditionType: req.ConditionType,
		Province:      req.Province,
		MarketType:    req.MarketType,
		Direction:     req.Direction,
		Quantity:      decimal.NewFromFloat(req.Quantity),
		PriceType:     req.PriceType,
		Status:        models.CondOrderPending,
		Enabled:       true,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
	}
	if req.LimitPrice != nil {
		v := decimal.NewFromFloat(*req.LimitPrice)
		order.LimitPrice = &v
	}

	switch req.ConditionType {
	case models.CondPriceAbove, models.CondPriceBelow:
		if req.TriggerPrice == nil {
			Error(c, http.StatusBadRequest, "trigger_price is required for "+req.ConditionType)
			return
		}
		v := decimal.NewFromFloat(*req.TriggerPrice)
		order.TriggerPrice = &v
	case models.CondPriceChangePct:
		if req.TriggerChangePct == nil || *req.TriggerChangePct <= 0 {
			Error(c, http.StatusBadRequest, "trigger_change_pct must be positive")
			return
		}
		order.TriggerChangePct = req.TriggerChangePct
		ref := decimal.NewFromFloat(h.referencePrice(c.Request.Context(), req.Province, req.MarketType))
		order.ReferencePrice = &ref
	case models.CondTimeTrigger:
		if req.TriggerTime == nil {
			Error(c, http.StatusBadRequest, "trigger_time is required for TIME_TRIGGER")
			return
		}
		order.TriggerTime = req.TriggerTime
	case models.CondVolumeAbove:
		if req.TriggerVolume == nil {
			Error(c, http.StatusBadRequest, "trigger_volume is required for VOLUME_ABOVE")
			return
		}
		v := decimal.NewFromFloat(*req.TriggerVolume)
		order.TriggerVolume = &v
	case models.CondIndicator:
		// Parameters are opaque to the HTTP layer; the engine's evaluator owns
		// their semantics.
	default:
		Error(c, http.StatusBadRequest, "unknown condition type "+req.ConditionType)
		return
	}

	if err := h.Repo.InsertConditionalOrder(c.Request.Context(), order); err != nil {
		h.fail(c, "conditional order create failed", err)
		return
	}
	Ok(c, order)
}

// referencePrice anchors PRICE_CHANGE_PCT at creation. Live quote first, then
// the province base price.
func (h *ConditionalOrdersHandler) referencePrice(ctx context.Context, province, marketType string) float64 {
	if h.Feed != nil {
		qctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		quote, err := h.Feed.CurrentQuote(qctx, province, marketType)
		cancel()
		if err == nil {
			return quote.Price
		}
	}
	if h.Registry != nil {
		return h.Registry.BasePrice(province)
	}
	return market.DefaultBasePrice
}

func (h *ConditionalOrdersHandler) list(c *gin.Context) {
	ownerID := auth.UserID(c)
	limit, offset := pagination(c)
	params := repository.ListConditionalOrdersParams{
		OwnerID:  &ownerID,
		Status:   strQueryPtr(c, "status"),
		Province: strQueryPtr(c, "province"),
		Limit:    limit,
		Offset:   offset,
		OrderBy:  c.Query("order_by"),
		Asc:      boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListConditionalOrders(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "conditional order list failed", err)
		return
	}
	total, err := h.Repo.CountConditionalOrders(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "conditional order count failed", err)
		return
	}
	OkMeta(c, items, paginationMeta{Total: total, Limit: limit, Offset: offset})
}

func (h *ConditionalOrdersHandler) get(c *gin.Context) {
	order, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, order)
}

func (h *ConditionalOrdersHandler) cancel(c *gin.Context) {
	order, ok := h.load(c)
	if !ok {
		return
	}
	if order.Status != models.CondOrderPending {
		Error(c, http.StatusConflict, "only pending conditional orders can be cancelled")
		return
	}
	if err := h.Repo.UpdateConditionalOrder(c.Request.Context(), order.ID, map[string]any{
		"status": models.CondOrderCancelled,
	}); err != nil {
		h.fail(c, "conditional order cancel failed", err)
		return
	}
	Ok(c, gin.H{"id": order.ID, "status": models.CondOrderCancelled})
}

func (h *ConditionalOrdersHandler) setEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.load(c)
		if !ok {
			return
		}
		if order.Status != models.CondOrderPending {
			Error(c, http.StatusConflict, "only pending conditional orders can be toggled")
			return
		}
		if err := h.Repo.UpdateConditionalOrder(c.Request.Context(), order.ID, map[string]any{
			"enabled": enabled,
		}); err != nil {
			h.fail(c, "conditional order toggle failed", err)
			return
		}
		Ok(c, gin.H{"id": order.ID, "enabled": enabled})
	}
}

func (h *ConditionalOrdersHandler) delete(c *gin.Context) {
	order, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteConditionalOrder(c.Request.Context(), order.ID); err != nil {
		h.fail(c, "conditional order delete failed", err)
		return
	}
	Ok(c, gin.H{"deleted": order.ID})
}

func (h *ConditionalOrdersHandler) triggerLogs(c *gin.Context) {
	order, ok := h.load(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	items, err := h.Repo.ListTriggerLogs(c.Request.Context(), repository.ListTriggerLogsParams{
		ConditionalOrderID: &order.ID,
		Limit:              limit,
		Offset:             offset,
	})
	if err != nil {
		h.fail(c, "trigger log list failed", err)
		return
	}
	Ok(c, items)
}

func (h *ConditionalOrdersHandler) load(c *gin.Context) (*models.ConditionalOrder, bool) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid conditional order id")
		return nil, false
	}
	order, err := h.Repo.GetConditionalOrderByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "conditional order lookup failed", err)
		return nil, false
	}
	if order == nil {
		Error(c, http.StatusNotFound, "conditional order not found")
		return nil, false
	}
	if order.OwnerID != auth.UserID(c) && auth.Role(c) != "admin" {
		Error(c, http.StatusForbidden, "not your conditional order")
		return nil, false
	}
	return order, true
}

func (h *ConditionalOrdersHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
