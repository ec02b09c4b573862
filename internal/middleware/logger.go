package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/session"
)

// Logger logs every request once it has been served, at a level picked by
// the response status. Request bodies are not logged.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		logger := requestLogger(c)

		var ev *zerolog.Event
		msg := "Request processed"
		switch {
		case status >= 500:
			ev, msg = logger.Error(), "Server error"
		case status >= 400:
			ev, msg = logger.Warn(), "Client error"
		default:
			ev = logger.Info()
		}

		if v, ok := c.Get(ContextSession); ok {
			if sess, ok := v.(*session.Session); ok {
				ev = ev.Str("user_id", sess.UserID.String()).Str("role", string(sess.Role))
			}
		}

		ev.Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}

// requestLogger returns the logger RequestID attached, or the global one.
func requestLogger(c *gin.Context) *zerolog.Logger {
	if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
