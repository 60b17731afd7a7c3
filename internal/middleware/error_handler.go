package middleware

import (
	"net/http"
	"time"

	"cajapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorHandler turns errors attached with c.Error into a generic 500. Handlers
// that map domain errors write their own response and attach nothing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last()
		log.Error().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.FullPath()).
			Str("method", c.Request.Method).
			Err(err.Err).
			Msg("unhandled error")

		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}

// Recovery converts panics into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// Logger logs each request once it completes. Keystroke batches are logged
// at debug level; the scanner bridge sends many of them.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Info()
		switch {
		case c.Writer.Status() >= 500:
			ev = log.Error()
		case c.FullPath() == "/v1/pos/teclas" || c.FullPath() == "/health":
			ev = log.Debug()
		}
		ev.
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
