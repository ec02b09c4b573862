package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
	"github.com/jwalitptl/hospital-api/internal/session"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const ContextSession = "session"

var (
	errMissingToken = errors.New("missing authorization header")
	errTokenFormat  = errors.New("invalid authorization format")
)

// Authenticator resolves a bearer token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate verifies the bearer token and puts the session on the
// request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.Fail(c, apperrors.Unauthorized(errMissingToken))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			handler.Fail(c, apperrors.Unauthorized(errTokenFormat))
			return
		}

		sess, err := m.auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			handler.Fail(c, err)
			return
		}

		c.Set(ContextSession, sess)
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))
		c.Next()
	}
}

// RequirePermission rejects sessions whose permissions fail allowed.
func (m *AuthMiddleware) RequirePermission(name string, allowed func(rbac.Permissions) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := handler.CurrentSession(c)
		if err != nil {
			handler.Fail(c, err)
			return
		}
		if !allowed(sess.Permissions) {
			handler.Fail(c, apperrors.Forbidden("permission denied: "+name))
			return
		}
		c.Next()
	}
}
