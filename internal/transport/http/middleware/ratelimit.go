package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quantum-dashboard/internal/ratelimit"
	"quantum-dashboard/internal/transport/http/response"
)

// RateLimit limits requests per authenticated user, or per client IP for
// anonymous routes. Redis failures let the request through.
func RateLimit(limiter *ratelimit.SlidingWindowLimiter, logger *slog.Logger) gin.HandlerFunc {
	limit := limiter.Config().RequestsPerWindow
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if actor, ok := CurrentActor(c); ok {
			key = "user:" + strconv.FormatUint(uint64(actor.UserID), 10)
		}

		result, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequests,
				fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}
