package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powerx/internal/auth"
	"powerx/internal/repository"
)

type DashboardHandler struct {
	Repo     repository.Repository
	Location *time.Location
	Logger   *zap.Logger
}

func (h *DashboardHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/dashboard", h.stats)
}

func (h *DashboardHandler) stats(c *gin.Context) {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	stats, err := h.Repo.DashboardStats(c.Request.Context(), auth.UserID(c), dayStart)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("dashboard stats failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "dashboard stats failed")
		return
	}
	Ok(c, stats)
}
