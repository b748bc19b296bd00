package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powerx/internal/market"
	"powerx/internal/marketdata"
	"powerx/internal/repository"
)

type MarketHandler struct {
	Repo      repository.Repository
	Registry  *market.Registry
	Validator *market.Validator
	Feed      marketdata.Feed
	Logger    *zap.Logger
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/market")
	g.GET("/provinces", h.provinces)
	g.GET("/price-limits/:province", h.priceLimits)
	g.GET("/trading-rules/:province", h.tradingRules)
	g.GET("/quotes", h.quotes)
	g.GET("/quotes/latest", h.latestQuote)
	g.POST("/validate", h.validate)
}

func (h *MarketHandler) provinces(c *gin.Context) {
	provinces := h.Registry.Provinces()
	sort.Strings(provinces)
	Ok(c, provinces)
}

func (h *MarketHandler) priceLimits(c *gin.Context) {
	province := c.Param("province")
	pc, configured := h.Registry.PriceCap(province)
	minPrice, maxPrice := h.Registry.PriceLimits(province)
	low, high := h.Registry.DeviationBand(province, h.Registry.BasePrice(province))
	Ok(c, gin.H{
		"province":              province,
		"configured":            configured,
		"min_price":             minPrice,
		"max_price":             maxPrice,
		"base_price":            h.Registry.BasePrice(province),
		"allows_negative":       h.Registry.AllowsNegativePrice(province),
		"max_deviation_percent": pc.MaxDeviationPercent,
		"deviation_band":        gin.H{"low": low, "high": high},
	})
}

func (h *MarketHandler) tradingRules(c *gin.Context) {
	province := c.Param("province")
	rules, configured := h.Registry.TradingRules(province)
	Ok(c, gin.H{
		"province":         province,
		"configured":       configured,
		"min_quantity":     rules.MinQuantity,
		"max_quantity":     rules.MaxQuantity,
		"quantity_step":    rules.QuantityStep,
		"price_step":       rules.PriceStep,
		"declare_deadline": rules.DeclareDeadline,
		"trading_hours":    rules.TradingHours,
	})
}

func (h *MarketHandler) quotes(c *gin.Context) {
	limit, offset := pagination(c)
	items, err := h.Repo.ListMarketQuotes(c.Request.Context(), repository.ListMarketQuotesParams{
		Province:   strQueryPtr(c, "province"),
		MarketType: strQueryPtr(c, "market_type"),
		Since:      timeQueryPtr(c, "since"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(c, "quote list failed", err)
		return
	}
	Ok(c, items)
}

func (h *MarketHandler) latestQuote(c *gin.Context) {
	province := c.Query("province")
	if province == "" {
		Error(c, http.StatusBadRequest, "province is required")
		return
	}
	marketType := c.Query("market_type")
	if marketType == "" {
		marketType = "day_ahead"
	}
	quote, err := h.Feed.CurrentQuote(c.Request.Context(), province, marketType)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, "quote unavailable")
		return
	}
	Ok(c, quote)
}

type validateRequest struct {
	Province   string  `json:"province" binding:"required"`
	MarketType string  `json:"market_type"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
}

// validate is a dry run of the admission check; nothing is persisted.
func (h *MarketHandler) validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if req.MarketType == "" {
		req.MarketType = "day_ahead"
	}
	verdict := h.Validator.ValidateOrderAdmission(req.Province, req.MarketType, req.Price, req.Quantity)
	Ok(c, verdict)
}

func (h *MarketHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
