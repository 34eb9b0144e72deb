package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WithAuditAction tags the request with the audit action name so
// AdminActionRateLimit knows which counter to check
func WithAuditAction(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("audit_action", action)
		c.Next()
	}
}

// AdminActionRateLimit slows down mass moderation. The audit log is the
// source of truth for how many times an admin performed an action in the
// window; crossing the hard threshold sets a one hour Redis block.
func AdminActionRateLimit(auditService *services.AuditService, redisClient *redis.Client, maxActions, windowMinutes int) gin.HandlerFunc {
	return func(c *gin.Context) {
		action := c.GetString("audit_action")
		if action == "" {
			c.Next()
			return
		}

		userIDInterface, exists := c.Get("userID")
		if !exists {
			c.Next()
			return
		}

		adminID, ok := userIDInterface.(uuid.UUID)
		if !ok {
			c.Next()
			return
		}

		ctx := context.Background()
		blockKey := fmt.Sprintf("admin_blocked:%s:%s", adminID.String(), action)

		if redisClient != nil {
			blocked, err := redisClient.Get(ctx, blockKey).Result()
			if err == nil && blocked == "1" {
				ttl, _ := redisClient.TTL(ctx, blockKey).Result()
				c.JSON(http.StatusForbidden, gin.H{
					"error":                 "admin_temporarily_blocked",
					"message":               "Your account has been temporarily blocked due to suspicious activity. Please contact the system administrator.",
					"blocked_until_minutes": int(ttl.Minutes()),
				})
				c.Abort()
				return
			}
		}

		since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

		count, err := auditService.GetActionCount(adminID, strings.Split(action, ","), since)
		if err != nil {
			c.Next()
			return
		}

		if count >= int64(maxActions)*2 && redisClient != nil {
			_ = redisClient.Set(ctx, blockKey, "1", time.Hour).Err()

			c.JSON(http.StatusForbidden, gin.H{
				"error":               "admin_temporarily_blocked",
				"message":             "Too many actions detected. Your account has been temporarily blocked for 1 hour.",
				"blocked_for_minutes": 60,
			})
			c.Abort()
			return
		}

		if count >= int64(maxActions) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate_limit_exceeded",
				"message":             "Too many actions in a short time. Please wait a few minutes.",
				"retry_after_minutes": windowMinutes,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
