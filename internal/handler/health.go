package handler

import (
	"context"
	"net/http"
	"time"

	"cajapos/internal/infra"
	"cajapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health reports DB and Redis connectivity, the backend breaker state and
// the dead-letter backlog. Only DB and Redis failures make it unhealthy.
func Health(db *gorm.DB, rdb *redis.Client, breaker *infra.Breaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		dlq := gin.H{}
		if redisStatus == "connected" {
			for _, q := range []string{worker.QueueEmail, worker.QueueMovimientos} {
				if n, err := worker.DLQLength(ctx, rdb, q); err == nil {
					dlq[q] = n
				}
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":      status == http.StatusOK,
			"db":      dbStatus,
			"redis":   redisStatus,
			"backend": breaker.State().String(),
			"dlq":     dlq,
		})
	}
}

// Fallidos lists the most recent dead-letter entries of a queue.
// @Summary Lista trabajos en la cola de fallidos
// @Tags sistema
// @Produce json
// @Param cola query string false "email | movimientos"
// @Success 200 {array} worker.DLQEntry
// @Router /v1/sistema/fallidos [get]
func Fallidos(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue := worker.QueueEmail
		if c.Query("cola") == "movimientos" {
			queue = worker.QueueMovimientos
		}
		entries, err := worker.PeekDLQ(c.Request.Context(), rdb, queue, 50)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
