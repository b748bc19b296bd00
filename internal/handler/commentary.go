package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powerx/internal/service"
)

type CommentaryHandler struct {
	Commentary *service.CommentaryService
	Provinces  []string
	Logger     *zap.Logger
}

func (h *CommentaryHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/commentary/daily", h.daily)
}

func (h *CommentaryHandler) daily(c *gin.Context) {
	if h.Commentary == nil || !h.Commentary.Enabled() {
		Error(c, http.StatusServiceUnavailable, "commentary is not enabled")
		return
	}
	marketType := c.Query("market_type")
	if marketType == "" {
		marketType = "day_ahead"
	}
	provinces := h.Provinces
	if p := c.Query("province"); p != "" {
		provinces = []string{p}
	}
	text, err := h.Commentary.DailyBrief(c.Request.Context(), provinces, marketType)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("commentary failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, "commentary generation failed")
		return
	}
	Ok(c, gin.H{"market_type": marketType, "text": text})
}
