package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"powerx/internal/auth"
	"powerx/internal/engine"
	"powerx/internal/models"
	"powerx/internal/repository"
)

type RulesHandler struct {
	Repo   repository.Repository
	Engine *engine.Engine
	Logger *zap.Logger
}

func (h *RulesHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/rules")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/activate", h.setStatus(models.RuleStatusActive))
	g.POST("/:id/pause", h.setStatus(models.RuleStatusPaused))
	g.POST("/:id/deactivate", h.setStatus(models.RuleStatusInactive))
	g.GET("/:id/executions", h.executions)
	g.POST("/:id/trigger", h.trigger)
}

type ruleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`

	ConditionExpr   json.RawMessage `json:"condition_expr" binding:"required"`
	ConditionParams json.RawMessage `json:"condition_params"`
	Provinces       []string        `json:"provinces"`
	MarketTypes     []string        `json:"market_types"`

	ActionType   string          `json:"action_type" binding:"required"`
	ActionParams json.RawMessage `json:"action_params"`

	MaxExecutionsPerDay *int `json:"max_executions_per_day"`
	MinIntervalSeconds  *int `json:"min_interval_seconds"`
	MaxTotalExecutions  *int `json:"max_total_executions"`
}

var validActions = map[string]bool{
	models.ActionPlaceOrder:      true,
	models.ActionSendAlert:       true,
	models.ActionCancelOrder:     true,
	models.ActionAdjustPosition:  true,
	models.ActionExecuteStrategy: true,
}

func (h *RulesHandler) create(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid rule payload: "+err.Error())
		return
	}
	if !validActions[req.ActionType] {
		Error(c, http.StatusBadRequest, "unknown action type "+req.ActionType)
		return
	}
	if _, err := engine.ParseCondition(req.ConditionExpr); err != nil {
		Error(c, http.StatusBadRequest, "invalid condition: "+err.Error())
		return
	}

	rule := &models.Rule{
		OwnerID:       auth.UserID(c),
		Name:          req.Name,
		Description:   req.Description,
		Status:        models.RuleStatusInactive,
		Priority:      req.Priority,
		ConditionExpr: datatypes.JSON(req.ConditionExpr),
		ActionType:    req.ActionType,
	}
	if len(req.ConditionParams) > 0 {
		rule.ConditionParams = datatypes.JSON(req.ConditionParams)
	}
	if len(req.ActionParams) > 0 {
		rule.ActionParams = datatypes.JSON(req.ActionParams)
	}
	if req.Provinces != nil {
		rule.Provinces = mustMarshal(req.Provinces)
	}
	if req.MarketTypes != nil {
		rule.MarketTypes = mustMarshal(req.MarketTypes)
	}
	if req.MaxExecutionsPerDay != nil && *req.MaxExecutionsPerDay >= 0 {
		rule.MaxExecutionsPerDay = *req.MaxExecutionsPerDay
	} else {
		rule.MaxExecutionsPerDay = 10
	}
	if req.MinIntervalSeconds != nil && *req.MinIntervalSeconds >= 0 {
		rule.MinIntervalSeconds = *req.MinIntervalSeconds
	} else {
		rule.MinIntervalSeconds = 60
	}
	rule.MaxTotalExecutions = req.MaxTotalExecutions

	if err := h.Repo.InsertRule(c.Request.Context(), rule); err != nil {
		h.fail(c, "rule create failed", err)
		return
	}
	Ok(c, rule)
}

func (h *RulesHandler) list(c *gin.Context) {
	ownerID := auth.UserID(c)
	limit, offset := pagination(c)
	params := repository.ListRulesParams{
		OwnerID: &ownerID,
		Status:  strQueryPtr(c, "status"),
		Limit:   limit,
		Offset:  offset,
		OrderBy: c.Query("order_by"),
		Asc:     boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListRules(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "rule list failed", err)
		return
	}
	total, err := h.Repo.CountRules(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "rule count failed", err)
		return
	}
	OkMeta(c, items, paginationMeta{Total: total, Limit: limit, Offset: offset})
}

func (h *RulesHandler) get(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, rule)
}

func (h *RulesHandler) update(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid rule payload: "+err.Error())
		return
	}
	if !validActions[req.ActionType] {
		Error(c, http.StatusBadRequest, "unknown action type "+req.ActionType)
		return
	}
	if _, err := engine.ParseCondition(req.ConditionExpr); err != nil {
		Error(c, http.StatusBadRequest, "invalid condition: "+err.Error())
		return
	}

	updates := map[string]any{
		"name":           req.Name,
		"description":    req.Description,
		"priority":       req.Priority,
		"condition_expr": datatypes.JSON(req.ConditionExpr),
		"action_type":    req.ActionType,
	}
	if len(req.ConditionParams) > 0 {
		updates["condition_params"] = datatypes.JSON(req.ConditionParams)
	}
	if len(req.ActionParams) > 0 {
		updates["action_params"] = datatypes.JSON(req.ActionParams)
	}
	if req.Provinces != nil {
		updates["provinces"] = mustMarshal(req.Provinces)
	}
	if req.MarketTypes != nil {
		updates["market_types"] = mustMarshal(req.MarketTypes)
	}
	if req.MaxExecutionsPerDay != nil && *req.MaxExecutionsPerDay >= 0 {
		updates["max_executions_per_day"] = *req.MaxExecutionsPerDay
	}
	if req.MinIntervalSeconds != nil && *req.MinIntervalSeconds >= 0 {
		updates["min_interval_seconds"] = *req.MinIntervalSeconds
	}
	if req.MaxTotalExecutions != nil {
		updates["max_total_executions"] = *req.MaxTotalExecutions
	}

	if err := h.Repo.UpdateRule(c.Request.Context(), rule.ID, updates); err != nil {
		h.fail(c, "rule update failed", err)
		return
	}
	updated, err := h.Repo.GetRuleByID(c.Request.Context(), rule.ID)
	if err != nil {
		h.fail(c, "rule reload failed", err)
		return
	}
	Ok(c, updated)
}

func (h *RulesHandler) delete(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteRule(c.Request.Context(), rule.ID); err != nil {
		h.fail(c, "rule delete failed", err)
		return
	}
	Ok(c, gin.H{"deleted": rule.ID})
}

func (h *RulesHandler) setStatus(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rule, ok := h.load(c)
		if !ok {
			return
		}
		if err := h.Repo.UpdateRuleStatus(c.Request.Context(), rule.ID, status); err != nil {
			h.fail(c, "rule status update failed", err)
			return
		}
		Ok(c, gin.H{"id": rule.ID, "status": status})
	}
}

func (h *RulesHandler) executions(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	params := repository.ListRuleExecutionsParams{
		RuleID:  &rule.ID,
		Success: boolQueryPtr(c, "success"),
		Since:   timeQueryPtr(c, "since"),
		Limit:   limit,
		Offset:  offset,
	}
	items, err := h.Repo.ListRuleExecutions(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "execution list failed", err)
		return
	}
	total, err := h.Repo.CountRuleExecutions(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "execution count failed", err)
		return
	}
	OkMeta(c, items, paginationMeta{Total: total, Limit: limit, Offset: offset})
}

// trigger fires the rule right now, skipping its condition but not its rate
// limits.
func (h *RulesHandler) trigger(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}
	if h.Engine == nil {
		Error(c, http.StatusServiceUnavailable, "engine not running")
		return
	}
	if err := h.Engine.TriggerRule(c.Request.Context(), rule.ID); err != nil {
		Error(c, http.StatusConflict, err.Error())
		return
	}
	Ok(c, gin.H{"id": rule.ID, "triggered": true})
}

// load fetches the rule from the path id and checks ownership.
func (h *RulesHandler) load(c *gin.Context) (*models.Rule, bool) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid rule id")
		return nil, false
	}
	rule, err := h.Repo.GetRuleByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "rule lookup failed", err)
		return nil, false
	}
	if rule == nil || rule.Status == models.RuleStatusDeleted {
		Error(c, http.StatusNotFound, "rule not found")
		return nil, false
	}
	if rule.OwnerID != auth.UserID(c) && auth.Role(c) != "admin" {
		Error(c, http.StatusForbidden, "not your rule")
		return nil, false
	}
	return rule, true
}

func (h *RulesHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}

func mustMarshal(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`[]`))
	}
	return datatypes.JSON(raw)
}
