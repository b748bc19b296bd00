package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"powerx/internal/auth"
	"powerx/internal/models"
	"powerx/internal/repository"
)

type ContractsHandler struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (h *ContractsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/contracts")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/terminate", h.terminate)
}

type contractRequest struct {
	Province      string    `json:"province" binding:"required"`
	MarketType    string    `json:"market_type"`
	Counterparty  string    `json:"counterparty"`
	Direction     string    `json:"direction" binding:"required"`
	Price         float64   `json:"price" binding:"required"`
	Quantity      float64   `json:"quantity" binding:"required"`
	DeliveryStart time.Time `json:"delivery_start" binding:"required"`
	DeliveryEnd   time.Time `json:"delivery_end" binding:"required"`
}

func (h *ContractsHandler) create(c *gin.Context) {
	var req contractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid contract payload: "+err.Error())
		return
	}
	if req.MarketType == "" {
		req.MarketType = "day_ahead"
	}
	if req.Direction != models.OrderDirectionBuy && req.Direction != models.OrderDirectionSell {
		Error(c, http.StatusBadRequest, "direction must be buy or sell")
		return
	}
	if !req.DeliveryEnd.After(req.DeliveryStart) {
		Error(c, http.StatusBadRequest, "delivery_end must be after delivery_start")
		return
	}

	contract := &models.Contract{
		OwnerID:       auth.UserID(c),
		ContractNo:    "PX-" + uuid.NewString()[:8],
		Province:      req.Province,
		MarketType:    req.MarketType,
		Counterparty:  req.Counterparty,
		Direction:     req.Direction,
		Price:         decimal.NewFromFloat(req.Price),
		Quantity:      decimal.NewFromFloat(req.Quantity),
		DeliveryStart: req.DeliveryStart,
		DeliveryEnd:   req.DeliveryEnd,
		Status:        "active",
	}
	if err := h.Repo.InsertContract(c.Request.Context(), contract); err != nil {
		h.fail(c, "contract create failed", err)
		return
	}
	Ok(c, contract)
}

func (h *ContractsHandler) list(c *gin.Context) {
	ownerID := auth.UserID(c)
	limit, offset := pagination(c)
	params := repository.ListContractsParams{
		OwnerID:  &ownerID,
		Status:   strQueryPtr(c, "status"),
		Province: strQueryPtr(c, "province"),
		Limit:    limit,
		Offset:   offset,
	}
	items, err := h.Repo.ListContracts(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "contract list failed", err)
		return
	}
	total, err := h.Repo.CountContracts(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "contract count failed", err)
		return
	}
	OkMeta(c, items, paginationMeta{Total: total, Limit: limit, Offset: offset})
}

func (h *ContractsHandler) get(c *gin.Context) {
	contract, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, contract)
}

func (h *ContractsHandler) terminate(c *gin.Context) {
	contract, ok := h.load(c)
	if !ok {
		return
	}
	if contract.Status != "active" {
		Error(c, http.StatusConflict, "only active contracts can be terminated")
		return
	}
	if err := h.Repo.UpdateContractStatus(c.Request.Context(), contract.ID, "terminated"); err != nil {
		h.fail(c, "contract terminate failed", err)
		return
	}
	Ok(c, gin.H{"id": contract.ID, "status": "terminated"})
}

func (h *ContractsHandler) load(c *gin.Context) (*models.Contract, bool) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid contract id")
		return nil, false
	}
	contract, err := h.Repo.GetContractByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "contract lookup failed", err)
		return nil, false
	}
	if contract == nil {
		Error(c, http.StatusNotFound, "contract not found")
		return nil, false
	}
	if contract.OwnerID != auth.UserID(c) && auth.Role(c) != "admin" {
		Error(c, http.StatusForbidden, "not your contract")
		return nil, false
	}
	return contract, true
}

func (h *ContractsHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
