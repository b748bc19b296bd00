package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"powerx/internal/auth"
	"powerx/internal/repository"
)

type AuthHandler struct {
	Repo   repository.Repository
	JWT    *auth.JWT
	Logger *zap.Logger
}

func (h *AuthHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/auth/login", h.login)
	r.GET("/api/v1/auth/me", h.me)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "username and password are required")
		return
	}
	user, err := h.Repo.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		Error(c, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !user.Active {
		Error(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		Error(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expires, err := h.JWT.Sign(user.ID, user.Username, user.Role)
	if err != nil {
		Error(c, http.StatusInternalServerError, "login failed")
		return
	}
	if err := h.Repo.UpdateUserLastLogin(c.Request.Context(), user.ID, time.Now().UTC()); err != nil && h.Logger != nil {
		h.Logger.Warn("last login update failed", zap.Uint64("user_id", user.ID), zap.Error(err))
	}
	Ok(c, gin.H{
		"token":      token,
		"expires_at": expires,
		"user": gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
			"role":         user.Role,
		},
	})
}

func (h *AuthHandler) me(c *gin.Context) {
	user, err := h.Repo.GetUserByID(c.Request.Context(), auth.UserID(c))
	if err != nil {
		Error(c, http.StatusInternalServerError, "lookup failed")
		return
	}
	if user == nil {
		Error(c, http.StatusNotFound, "user not found")
		return
	}
	Ok(c, user)
}
