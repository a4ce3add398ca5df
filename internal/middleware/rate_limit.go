package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Limiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitMiddleware limits action per user, or per client IP for anonymous
// callers. A nil limiter or a limiter error lets the request through.
func RateLimitMiddleware(limiter Limiter, action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if userID, err := utils.GetUserID(c); err == nil {
			subject = "user:" + userID
		}
		key := fmt.Sprintf("rate:limit:%s:%s", subject, action)

		allowed, err := limiter.AllowRequest(c.Request.Context(), key, limit, window)
		if err != nil {
			zap.L().Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			utils.Error(c, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}

		c.Next()
	}
}
