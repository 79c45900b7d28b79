// Package middleware holds the gin middleware shared by every route.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danielolaszy/codefair/internal/logging"
)

// Logger logs one record per request, at warn for 4xx and error for 5xx.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if delivery := c.GetHeader("X-GitHub-Delivery"); delivery != "" {
			attrs = append(attrs, "delivery_id", delivery)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logging.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			logging.WarnContext(ctx, "request error", attrs...)
		default:
			logging.InfoContext(ctx, "request", attrs...)
		}
	}
}
