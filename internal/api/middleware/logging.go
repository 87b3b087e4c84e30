package middleware

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoggingMiddleware returns a gin.HandlerFunc for logging requests. Paths in
// skip, such as scrape endpoints, are not logged.
func LoggingMiddleware(logger *logrus.Logger, skip ...string) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: skip,
		Output:    io.Discard,
		Formatter: func(param gin.LogFormatterParams) string {
			entry := logger.WithFields(logrus.Fields{
				"client_ip":     param.ClientIP,
				"method":        param.Method,
				"path":          param.Path,
				"status_code":   param.StatusCode,
				"latency":       param.Latency,
				"user_agent":    param.Request.UserAgent(),
				"error_message": param.ErrorMessage,
			})

			switch {
			case param.StatusCode >= 500:
				entry.Error("HTTP Request")
			case param.StatusCode >= 400:
				entry.Warn("HTTP Request")
			default:
				entry.Debug("HTTP Request")
			}

			return ""
		},
	})
}
