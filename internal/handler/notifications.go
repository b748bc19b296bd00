package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powerx/internal/auth"
	"powerx/internal/repository"
)

type NotificationsHandler struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (h *NotificationsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/notifications")
	g.GET("", h.list)
	g.GET("/unread-count", h.unreadCount)
	g.POST("/:id/read", h.markRead)
	g.POST("/read-all", h.markAllRead)
}

func (h *NotificationsHandler) list(c *gin.Context) {
	ownerID := auth.UserID(c)
	limit, offset := pagination(c)
	unread := false
	if v := boolQueryPtr(c, "unread"); v != nil {
		unread = *v
	}
	items, err := h.Repo.ListNotifications(c.Request.Context(), repository.ListNotificationsParams{
		OwnerID:    &ownerID,
		Level:      strQueryPtr(c, "level"),
		UnreadOnly: unread,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(c, "notification list failed", err)
		return
	}
	Ok(c, items)
}

func (h *NotificationsHandler) unreadCount(c *gin.Context) {
	count, err := h.Repo.CountUnreadNotifications(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.fail(c, "unread count failed", err)
		return
	}
	Ok(c, gin.H{"unread": count})
}

func (h *NotificationsHandler) markRead(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := h.Repo.MarkNotificationRead(c.Request.Context(), id, time.Now().UTC()); err != nil {
		h.fail(c, "mark read failed", err)
		return
	}
	Ok(c, gin.H{"id": id, "read": true})
}

func (h *NotificationsHandler) markAllRead(c *gin.Context) {
	n, err := h.Repo.MarkAllNotificationsRead(c.Request.Context(), auth.UserID(c), time.Now().UTC())
	if err != nil {
		h.fail(c, "mark all read failed", err)
		return
	}
	Ok(c, gin.H{"marked": n})
}

func (h *NotificationsHandler) fail(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, msg)
}
