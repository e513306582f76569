package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/pkg/apperror"
	"github.com/ruban1613/ibet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimit creates a middleware enforcing the named scope's
// fixed-window limit. The subject is the authenticated user when one is
// on the context, the client IP otherwise. A failing limiter store
// degrades open: requests pass, a warning is logged.
func RateLimit(limiter ports.RateLimiter, scope string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := extractSubject(c)

		result, err := limiter.Check(c.Request.Context(), subject, scope)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int64(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimited(retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractSubject determines the rate limit key source.
func extractSubject(c *gin.Context) string {
	if uid, exists := c.Get(CtxUserID); exists {
		return fmt.Sprintf("%v", uid)
	}
	return c.ClientIP()
}
