package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"powerx/internal/auth"
	"powerx/internal/models"
	"powerx/internal/repository"
	"powerx/internal/service"
)

type AdminHandler struct {
	Repo   repository.Repository
	Backup *service.BackupService
	Logger *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/admin", auth.RequireRole("admin"))

	g.POST("/users", h.createUser)

	g.POST("/api-keys", h.createAPIKey)
	g.GET("/api-keys", h.listAPIKeys)
	g.POST("/api-keys/:id/revoke", h.revokeAPIKey)

	g.POST("/ip-filters", h.createIPFilter)
	g.GET("/ip-filters", h.listIPFilters)
	g.DELETE("/ip-filters/:id", h.deleteIPFilter)

	g.POST("/backups", h.runBackup)
	g.GET("/backups", h.listBackups)
}

type createUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (h *AdminHandler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "username and password are required")
		return
	}
	if len(req.Password) < 8 {
		Error(c, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	role := req.Role
	if role == "" {
		role = "trader"
	}
	existing, err := h.Repo.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.fail(c, "user lookup failed", err)
		return
	}
	if existing != nil {
		Error(c, http.StatusConflict, "username already taken")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(c, "password hash failed", err)
		return
	}
	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		Role:         role,
		Active:       true,
	}
	if err := h.Repo.CreateUser(c.Request.Context(), user); err != nil {
		h.fail(c, "user create failed", err)
		return
	}
	Ok(c, user)
}

type createAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// createAPIKey returns the plain key exactly once; only the hash is stored.
func (h *AdminHandler) createAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "name is required")
		return
	}
	plain := "pxk_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	key := &models.APIKey{
		OwnerID:   auth.UserID(c),
		Name:      req.Name,
		KeyHash:   auth.HashAPIKey(plain),
		Prefix:    plain[:12],
		Active:    true,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.Repo.InsertAPIKey(c.Request.Context(), key); err != nil {
		h.fail(c, "api key create failed", err)
		return
	}
	Ok(c, gin.H{"id": key.ID, "name": key.Name, "key": plain, "prefix": key.Prefix})
}

func (h *AdminHandler) listAPIKeys(c *gin.Context) {
	items, err := h.Repo.ListAPIKeys(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.fail(c, "api key list failed", err)
		return
	}
	Ok(c, items)
}

func (h *AdminHandler) revokeAPIKey(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid api key id")
		return
	}
	if err := h.Repo.RevokeAPIKey(c.Request.Context(), id, time.Now().UTC()); err != nil {
		h.fail(c, "api key revoke failed", err)
		return
	}
	Ok(c, gin.H{"id": id, "active": false})
}

type ipFilterRequest struct {
	CIDR    string `json:"cidr" binding:"required"`
	Mode    string `json:"mode"`
	Comment string `json:"comment"`
}

func (h *AdminHandler) createIPFilter(c *gin.Context) {
	var req ipFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "cidr is required")
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = models.IPFilterDeny
	}
	if mode != models.IPFilterAllow && mode != models.IPFilterDeny {
		Error(c, http.StatusBadRequest, "mode must be allow or deny")
		return
	}
	filter := &models.IPFilter{
		CIDR:    req.CIDR,
		Mode:    mode,
		Comment: req.Comment,
		Active:  true,
	}
	if err := h.Repo.InsertIPFilter(c.Request.Context(), filter); err != nil {
		h.fail(c, "ip filter create failed", err)
		return
	}
	Ok(c, filter)
}

func (h *AdminHandler) listIPFilters(c *gin.Context) {
	items, err := h.Repo.ListIPFilters(c.Request.Context(), false)
	if err != nil {
		h.fail(c, "ip filter list failed", err)
		return
	}
	Ok(c, items)
}

func (h *AdminHandler) deleteIPFilter(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid ip filter id")
		return
	}
	if err := h.Repo.DeleteIPFilter(c.Request.Context(), id); err != nil {
		h.fail(c, "ip filter delete failed", err)
		return
	}
	Ok(c, gin.H{"deleted": id})
}

func (h *AdminHandler) runBackup(c *gin.Context) {
	record, err := h.Backup.Run(c.Request.Context(), "manual")
	if err != nil {
		h.fail(c, "backup failed", err)
		return
	}
	Ok(c, record)
}

func (h *AdminHandler) listBackups(c *gin.Context) {
	limit, offset := pagination(c)
	items, err := h.Repo.ListBackupRecords(c.Request.Context(), repository.ListBackupRecordsParams{
		Status: strQueryPtr(c, "status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, "backup list failed", err)
		return
	}
	Ok(c, items)
}

func (h *AdminHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
