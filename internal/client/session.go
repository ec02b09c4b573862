package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// Session is a signed-in user. It is created by Login and must be ended
// with Close; nothing about it is written to disk.
type Session struct {
	client      *Client
	User        model.User
	Permissions rbac.Permissions

	mu     sync.RWMutex
	token  string
	closed bool
}

// Signup creates an account. Doctor and Pharmacist accounts cannot log in
// until an admin approves them; the returned message says so.
func (c *Client) Signup(ctx context.Context, req *model.SignupRequest) (string, error) {
	env, err := c.auth(ctx, request{method: http.MethodPost, path: endpoint("auth", "signup"), body: req})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Login opens a session. Accounts awaiting approval get an error of kind
// PendingApproval.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	env, err := c.auth(ctx, request{
		method: http.MethodPost,
		path:   endpoint("auth", "login"),
		body:   model.LoginRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	if env.Token == "" || len(env.User) == 0 {
		return nil, apperrors.Remote(http.StatusOK, "login reply carried no session", nil)
	}

	var user model.User
	if err := json.Unmarshal(env.User, &user); err != nil {
		return nil, apperrors.Remote(http.StatusOK, "failed to decode user", err)
	}

	perms, err := rbac.For(user.Role)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	c.logger.Info("signed in", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	return &Session{
		client:      c,
		User:        user,
		Permissions: perms,
		token:       env.Token,
	}, nil
}

// Close signs out. The token is dropped even if the server cannot be
// reached, so a closed session is never reused.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.closed = true
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	_, err := s.client.auth(ctx, request{method: http.MethodPost, path: endpoint("auth", "logout"), token: token})
	if err != nil {
		s.client.logger.Warn("sign out failed", zap.Error(err))
		return err
	}
	s.client.logger.Info("signed out", zap.String("email", s.User.Email))
	return nil
}

func (s *Session) call(ctx context.Context, req request, out interface{}) error {
	s.mu.RLock()
	token, closed := s.token, s.closed
	s.mu.RUnlock()
	if closed {
		return apperrors.Unauthorized(fmt.Errorf("session closed"))
	}

	req.token = token
	return s.client.call(ctx, req, out)
}
