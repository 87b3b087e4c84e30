package middleware

import (
	stderrors "errors"
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "github.com/frostdev-ops/ha-trend-monitor/pkg/errors"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/utils"
)

// ErrorHandlingMiddleware recovers panics and answers with a 500 envelope.
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.RawQuery,
			"ip":          c.ClientIP(),
			"panic":       fmt.Sprintf("%v", recovered),
			"stack_trace": string(debug.Stack()),
		}).Error("Panic recovered in API middleware")

		utils.SendAppError(c, apperrors.ErrInternalServer)
		c.Abort()
	})
}

// ErrorResponseMiddleware converts errors attached with c.Error into the
// standard error envelope when the handler wrote nothing.
func ErrorResponseMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(err).Error("API request error")

		if c.Writer.Written() {
			return
		}
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) {
			utils.SendAppError(c, appErr)
			return
		}
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrInternalServer, err.Error()))
	}
}
