package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/session"
)

const HeaderAccessReason = "X-Access-Reason"

// RecordAccess writes an audit line for every request that reaches patient
// records: who asked, under which role, for what route and record, and how
// it ended. Bodies are never logged.
func RecordAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ev := requestLogger(c).Info().
			Bool("audit", true).
			Str("action", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", c.Writer.Status())

		if v, ok := c.Get(ContextSession); ok {
			if sess, ok := v.(*session.Session); ok {
				ev = ev.Str("user_id", sess.UserID.String()).Str("role", string(sess.Role))
			}
		}
		if id := c.Param("id"); id != "" {
			ev = ev.Str("record_id", id)
		}
		if name := c.Param("name"); name != "" {
			ev = ev.Str("patient_name", name)
		}
		if reason := c.GetHeader(HeaderAccessReason); reason != "" {
			ev = ev.Str("reason", reason)
		}
		ev.Msg("Patient record access")
	}
}
