package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powerx/internal/auth"
	"powerx/internal/repository"
	"powerx/internal/service"
)

type SettlementsHandler struct {
	Repo       repository.Repository
	Settlement *service.SettlementService
	Location   *time.Location
	Logger     *zap.Logger
}

func (h *SettlementsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settlements")
	g.GET("", h.list)
	g.POST("/generate", h.generate)
}

func (h *SettlementsHandler) list(c *gin.Context) {
	ownerID := auth.UserID(c)
	limit, offset := pagination(c)
	params := repository.ListSettlementsParams{
		OwnerID:  &ownerID,
		Province: strQueryPtr(c, "province"),
		Day:      timeQueryPtr(c, "day"),
		Limit:    limit,
		Offset:   offset,
	}
	items, err := h.Repo.ListSettlements(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "settlement list failed", err)
		return
	}
	total, err := h.Repo.CountSettlements(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "settlement count failed", err)
		return
	}
	OkMeta(c, items, paginationMeta{Total: total, Limit: limit, Offset: offset})
}

// generate rolls the caller's filled orders for the given day (default today)
// into settlements. Idempotent.
func (h *SettlementsHandler) generate(c *gin.Context) {
	day := time.Now()
	if d := timeQueryPtr(c, "day"); d != nil {
		day = *d
	}
	created, err := h.Settlement.GenerateDaily(c.Request.Context(), auth.UserID(c), day, h.Location)
	if err != nil {
		h.fail(c, "settlement generation failed", err)
		return
	}
	Ok(c, gin.H{"created": created})
}

func (h *SettlementsHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
