// Package client talks to the hospital API on behalf of one signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// EnvAPIURL names the environment variable holding the API base URL.
const EnvAPIURL = "HOSPITAL_API_URL"

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New returns a client for the API at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the body of every /api reply outside /auth.
type envelope struct {
	Status  string                 `json:"status"`
	Data    json.RawMessage        `json:"data"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Errors  []apperrors.FieldError `json:"errors"`
}

// authEnvelope is the body of /auth replies, errors included.
type authEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Token   string                 `json:"token"`
	User    json.RawMessage        `json:"user"`
	Code    string                 `json:"code"`
	Errors  []apperrors.FieldError `json:"errors"`
}

type request struct {
	method string
	path   []string
	token  string
	query  url.Values
	body   interface{}
}

// do sends req and returns the status and raw body. Transport failures come
// back as Remote errors with status 0.
func (c *Client) do(ctx context.Context, req request) (int, []byte, error) {
	u := c.baseURL.JoinPath(req.path...)
	path := u.Path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", req.method), zap.String("path", path), zap.Error(err))
		return 0, nil, apperrors.Remote(0, "could not reach the server", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, apperrors.Remote(resp.StatusCode, "failed to read response", err)
	}

	c.logger.Debug("request done",
		zap.String("method", req.method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.StatusCode, raw, nil
}

// call sends req to an enveloped endpoint and decodes data into out.
func (c *Client) call(ctx context.Context, req request, out interface{}) error {
	status, raw, err := c.do(ctx, req)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperrors.Remote(status, fmt.Sprintf("unexpected response (HTTP %d)", status), err)
	}
	if status >= http.StatusBadRequest {
		return remoteError(status, env.Code, env.Message, env.Errors)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.Remote(status, "failed to decode response data", err)
	}
	return nil
}

// auth sends req to an /auth endpoint.
func (c *Client) auth(ctx context.Context, req request) (*authEnvelope, error) {
	status, raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var env authEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.Remote(status, fmt.Sprintf("unexpected response (HTTP %d)", status), err)
	}
	if status >= http.StatusBadRequest || !env.Success {
		return nil, remoteError(status, env.Code, env.Message, env.Errors)
	}
	return &env, nil
}

// remoteError keeps the server's error kind, so callers can test it with
// errors.Has just as they would on the server.
func remoteError(status int, code, message string, fields []apperrors.FieldError) error {
	if message == "" {
		message = http.StatusText(status)
	}
	appErr := apperrors.Remote(status, message, nil)
	if parsed, ok := apperrors.ParseCode(code); ok {
		appErr.Code = parsed
	}
	appErr.Fields = fields
	return appErr
}
