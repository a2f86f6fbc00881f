package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"goim-relation/pkg/logger"
)

// Logging 记录每个HTTP请求，5xx 使用 Error 级别
func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.F("method", c.Request.Method),
			logger.F("path", c.Request.URL.Path),
			logger.F("status", c.Writer.Status()),
			logger.F("latency", time.Since(start).String()),
			logger.F("clientIP", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.F("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			log.Error(c.Request.Context(), "HTTP request", fields...)
			return
		}
		log.Info(c.Request.Context(), "HTTP request", fields...)
	}
}
