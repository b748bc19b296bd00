package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"powerx/internal/auth"
	"powerx/internal/market"
	"powerx/internal/models"
	"powerx/internal/repository"
)

type OrdersHandler struct {
	Repo      repository.Repository
	Validator *market.Validator
	AutoFill  bool
	Logger    *zap.Logger
}

func (h *OrdersHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/cancel", h.cancel)
}

type orderRequest struct {
	Province   string  `json:"province" binding:"required"`
	MarketType string  `json:"market_type"`
	Direction  string  `json:"direction" binding:"required"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity" binding:"required"`
	PriceType  string  `json:"price_type"`
}

func (h *OrdersHandler) create(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid order payload: "+err.Error())
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

	verdict := h.Validator.ValidateOrderAdmission(req.Province, req.MarketType, req.Price, req.Quantity)
	if !verdict.Valid {
		c.JSON(http.StatusUnprocessableEntity, apiResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: "申报校验未通过",
			Data:    verdict,
		})
		return
	}

	order := &models.Order{
		OwnerID:    auth.UserID(c),
		Province:   req.Province,
		MarketType: req.MarketType,
		Direction:  req.Direction,
		PriceType:  req.PriceType,
		Price:      decimal.NewFromFloat(req.Price),
		Quantity:   decimal.NewFromFloat(req.Quantity),
		Status:     models.OrderStatusPending,
		Source:     "manual",
	}
	if err := h.Repo.InsertOrder(c.Request.Context(), order); err != nil {
		h.fail(c, "order create failed", err)
		return
	}
	if h.AutoFill {
		now := time.Now().UTC()
		if err := h.Repo.UpdateOrderStatus(c.Request.Context(), order.ID, models.OrderStatusFilled, map[string]any{"filled_at": now}); err != nil {
			h.fail(c, "order fill failed", err)
			return
		}
		order.Status = models.OrderStatusFilled
		order.FilledAt = &now
	}
	OkMeta(c, order, gin.H{"warnings": verdict.Warnings})
}

func (h *OrdersHandler) list(c *gin.Context) {
	ownerID := auth.UserID(c)
	limit, offset := pagination(c)
	params := repository.ListOrdersParams{
		OwnerID:  &ownerID,
		Status:   strQueryPtr(c, "status"),
		Province: strQueryPtr(c, "province"),
		Source:   strQueryPtr(c, "source"),
		Limit:    limit,
		Offset:   offset,
		OrderBy:  c.Query("order_by"),
		Asc:      boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListOrders(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "order list failed", err)
		return
	}
	total, err := h.Repo.CountOrders(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "order count failed", err)
		return
	}
	OkMeta(c, items, paginationMeta{Total: total, Limit: limit, Offset: offset})
}

func (h *OrdersHandler) get(c *gin.Context) {
	order, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, order)
}

func (h *OrdersHandler) cancel(c *gin.Context) {
	order, ok := h.load(c)
	if !ok {
		return
	}
	if order.Status != models.OrderStatusPending {
		Error(c, http.StatusConflict, "only pending orders can be cancelled")
		return
	}
	now := time.Now().UTC()
	if err := h.Repo.UpdateOrderStatus(c.Request.Context(), order.ID, models.OrderStatusCancelled, map[string]any{"cancelled_at": now}); err != nil {
		h.fail(c, "order cancel failed", err)
		return
	}
	Ok(c, gin.H{"id": order.ID, "status": models.OrderStatusCancelled})
}

func (h *OrdersHandler) load(c *gin.Context) (*models.Order, bool) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid order id")
		return nil, false
	}
	order, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "order lookup failed", err)
		return nil, false
	}
	if order == nil {
		Error(c, http.StatusNotFound, "order not found")
		return nil, false
	}
	if order.OwnerID != auth.UserID(c) && auth.Role(c) != "admin" {
		Error(c, http.StatusForbidden, "not your order")
		return nil, false
	}
	return order, true
}

func (h *OrdersHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
