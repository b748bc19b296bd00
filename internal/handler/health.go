package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"powerx/internal/db"
)

type HealthHandler struct {
	DB      *db.DB
	Version string
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)
}

func (h *HealthHandler) healthz(c *gin.Context) {
	Ok(c, gin.H{"status": "ok", "version": h.Version})
}

func (h *HealthHandler) readyz(c *gin.Context) {
	if err := db.Ping(h.DB); err != nil {
		Error(c, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	Ok(c, gin.H{"status": "ready"})
}
