package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powerx/internal/models"
	"powerx/internal/repository"
)

const (
	ctxUserIDKey   = "auth.user_id"
	ctxUsernameKey = "auth.username"
	ctxRoleKey     = "auth.role"
)

// openPaths bypass authentication entirely.
var openPaths = map[string]bool{
	"/healthz":           true,
	"/readyz":            true,
	"/api/v1/auth/login": true,
}

// HashAPIKey returns the stored form of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Middleware authenticates requests with either a bearer token or an API key
// header. When disabled it only stamps a default identity so handlers can
// still resolve an owner.
func Middleware(jwtSvc *JWT, repo repository.Repository, apiKeyHeader string, disabled bool, logger *zap.Logger) gin.HandlerFunc {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return func(c *gin.Context) {
		if disabled {
			c.Set(ctxUserIDKey, uint64(1))
			c.Set(ctxRoleKey, "admin")
			c.Next()
			return
		}
		if openPaths[c.FullPath()] || openPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if raw := strings.TrimSpace(c.GetHeader(apiKeyHeader)); raw != "" {
			key, err := repo.GetAPIKeyByHash(c.Request.Context(), HashAPIKey(raw))
			if err != nil || key == nil {
				abortUnauthorized(c, "invalid api key")
				return
			}
			if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
				abortUnauthorized(c, "api key expired")
				return
			}
			if err := repo.TouchAPIKey(c.Request.Context(), key.ID, time.Now().UTC()); err != nil && logger != nil {
				logger.Warn("api key touch failed", zap.Uint64("key_id", key.ID), zap.Error(err))
			}
			c.Set(ctxUserIDKey, key.OwnerID)
			c.Set(ctxRoleKey, "trader")
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "missing credentials")
			return
		}
		claims, err := jwtSvc.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxUsernameKey, claims.Username)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

// IPFilterMiddleware enforces CIDR allow/deny rules. Deny rules win; with at
// least one allow rule present, unmatched addresses are rejected.
func IPFilterMiddleware(repo repository.Repository, enabled bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		filters, err := repo.ListIPFilters(c.Request.Context(), true)
		if err != nil {
			if logger != nil {
				logger.Warn("ip filter lookup failed", zap.Error(err))
			}
			c.Next()
			return
		}
		if len(filters) == 0 {
			c.Next()
			return
		}
		ip := net.ParseIP(c.ClientIP())
		if ip == nil {
			abortForbidden(c)
			return
		}
		hasAllow := false
		allowed := false
		for _, f := range filters {
			_, cidr, err := net.ParseCIDR(f.CIDR)
			if err != nil {
				continue
			}
			if f.Mode == models.IPFilterAllow {
				hasAllow = true
			}
			if !cidr.Contains(ip) {
				continue
			}
			if f.Mode == models.IPFilterDeny {
				abortForbidden(c)
				return
			}
			allowed = true
		}
		if hasAllow && !allowed {
			abortForbidden(c)
			return
		}
		c.Next()
	}
}

// RequireRole guards admin-only routes.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, _ := c.Get(ctxRoleKey); got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": "insufficient role",
			})
			return
		}
		c.Next()
	}
}

// UserID resolves the authenticated owner, defaulting to user 1 when auth is
// disabled and nothing was stamped.
func UserID(c *gin.Context) uint64 {
	if v, ok := c.Get(ctxUserIDKey); ok {
		if id, ok := v.(uint64); ok && id > 0 {
			return id
		}
	}
	return 1
}

func Role(c *gin.Context) string {
	if v, ok := c.Get(ctxRoleKey); ok {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}

func abortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":    http.StatusForbidden,
		"message": "forbidden",
	})
}
