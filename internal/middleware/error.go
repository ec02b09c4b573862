package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// ErrorHandler logs the errors handlers attached and renders the last one,
// unless the handler already wrote a body.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		logger := requestLogger(c)

		for _, e := range c.Errors {
			appErr := apperrors.From(e.Err)
			ev := logger.Warn()
			if appErr.StatusCode() >= 500 {
				ev = logger.Error()
			}
			ev.Err(e.Err).
				Str("code", appErr.Code.String()).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		status, body := handler.NewErrorResponse(c.Errors.Last().Err, requestID)
		c.JSON(status, body)
	}
}
