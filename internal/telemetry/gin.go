package telemetry

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// GinLogger logs one line per request once the handler chain has finished.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}

		lvl := slog.LevelInfo
		switch {
		case c.Writer.Status() >= 500:
			lvl = slog.LevelError
		case c.Writer.Status() >= 400:
			lvl = slog.LevelWarn
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		slog.Log(c, lvl, "http: request finished", attrs...)
	}
}
