package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givelane/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonRate = "rate"

type rateKeyFunc func(c *gin.Context) string

// RateLimit rejects requests over the limiter budget for the derived key.
func (s *Server) RateLimit(limiter *ratelimit.Limiter, keyFn rateKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !limiter.Enabled() {
			c.Next()
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		allowed, retryAfter := limiter.Allow(c.Request.Context(), keyFn(c))
		if allowed {
			c.Next()
			return
		}

		s.requestLogger(c).Info("rate limit exceeded",
			zap.String("limiter", limiter.Name()),
			zap.String("endpoint", endpoint),
		)
		s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), endpoint, rateLimitReasonRate)

		c.Header("Retry-After", retryAfterSeconds(retryAfter))
		AbortWithError(c, ErrRateLimited)
	}
}

func webhookRateKey(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("provider")))
}

func actorRateKey(c *gin.Context) string {
	if principal, ok := principalFromContext(c); ok {
		return principal.Subject
	}
	return c.ClientIP()
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
