package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/pkg/config"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
	"github.com/andriyansah/school-api/pkg/response"
)

// RateLimit throttles clients by IP using a fixed Redis window. Redis
// failures fail open so an outage never takes the API down with it.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !cfg.Enabled || client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, cfg.Window).Err(); err != nil {
				logger.Warn("rate limit expire failed", zap.Error(err))
			}
		}

		if count > int64(cfg.Max) {
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
