package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cajapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a fixed-window limiter per client IP kept in Redis, so the
// count survives gateway restarts and needs no purge goroutine. When Redis is
// unreachable requests are let through.
func RateLimiter(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		bucket := now.Truncate(window)
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), bucket.Unix())

		ctx := c.Request.Context()
		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Debug().Err(err).Msg("rate limiter: redis unavailable, allowing request")
			c.Next()
			return
		}

		if incr.Val() > int64(limit) {
			retry := bucket.Add(window).Sub(now)
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}
