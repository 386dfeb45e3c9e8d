package panel

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/delaydeck/pkg/logger"
)

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			logger.Warnf("panel: [%s] %s - %d (%v)", c.Request.Method, path, status, latency)
		default:
			logger.Debugf("panel: [%s] %s - %d (%v)", c.Request.Method, path, status, latency)
		}
	}
}
