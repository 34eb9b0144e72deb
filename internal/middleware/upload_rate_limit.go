package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/artgrid/backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UploadSignatureRateLimit caps the number of upload signatures a user can
// request per day. Since signatures grant direct write access to the media
// provider, an unbounded issuer would let a single account flood storage.
// The counter resets at midnight; Redis failures never block the request.
func UploadSignatureRateLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()

		userIDInterface, exists := c.Get("userID")
		if !exists {
			c.Next()
			return
		}

		userID, ok := userIDInterface.(uuid.UUID)
		if !ok {
			c.Next()
			return
		}

		today := time.Now().Format("2006-01-02")
		key := fmt.Sprintf("upload_sig:%s:%s", userID.String(), today)

		count, err := redisClient.Get(ctx, key).Int()
		if err == redis.Nil {
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			if err := redisClient.Set(ctx, key, 1, midnight.Sub(now)).Err(); err != nil {
				c.Next()
				return
			}
		} else if err != nil {
			c.Next()
			return
		} else if count >= cfg.UploadSignaturesPerDay {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":              "upload_rate_limit_exceeded",
				"message":            "Too many upload signatures requested today. Please try again tomorrow.",
				"retry_after_hours":  int(ttl.Hours()),
				"signatures_today":   count,
				"signatures_per_day": cfg.UploadSignaturesPerDay,
			})
			c.Abort()
			return
		} else {
			redisClient.Incr(ctx, key)
		}

		c.Next()
	}
}
