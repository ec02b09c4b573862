package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(RequestID(), ErrorHandler())
	e.Use(mw...)
	return e
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestCompress(t *testing.T) {
	e := newEngine(Compress(DefaultCompressConfig()))
	payload := strings.Repeat("appointment ", 200)
	e.GET("/api/appointments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": payload})
	})
	e.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.DELETE("/api/users/x", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	t.Run("gzips when accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		w := serve(e, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)

		var out map[string]string
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, payload, out["data"])
	})

	t.Run("plain without accept-encoding", func(t *testing.T) {
		w := serve(e, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Contains(t, w.Body.String(), "appointment")
	})

	t.Run("skipped paths stay plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := serve(e, req)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("empty body is not encoded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/users/x", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := serve(e, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Zero(t, w.Body.Len())
	})
}

func TestVersion(t *testing.T) {
	e := newEngine(Version(DefaultVersionConfig()))
	e.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := serve(e, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CurrentAPIVersion, w.Header().Get(HeaderAPIVersion))

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(HeaderAcceptVersion, CurrentAPIVersion)
	assert.Equal(t, http.StatusOK, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(HeaderAcceptVersion, "3.0")
	w = serve(e, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_REQUEST")
	assert.Contains(t, w.Body.String(), "3.0")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 1, Burst: 2})
	e := newEngine(rl.RateLimit())
	e.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(e, req).Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"), "limits are per client")
}

func TestRecovery(t *testing.T) {
	e := newEngine(Recovery())
	e.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestSizeLimit(t *testing.T) {
	e := newEngine(SizeLimit(16))
	e.POST("/api/appointments", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(e, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(e, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "BODY_TOO_LARGE")
}

func TestRecordAccess(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sess := &session.Session{UserID: uuid.New(), Role: model.RoleDoctor}

	e := gin.New()
	e.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Set(ContextSession, sess)
		c.Next()
	}, RecordAccess())
	e.GET("/api/appointments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/appointments/"+id, nil)
	req.Header.Set(HeaderAccessReason, "follow-up review")
	serve(e, req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, true, line["audit"])
	assert.Equal(t, "GET", line["action"])
	assert.Equal(t, "/api/appointments/:id", line["route"])
	assert.Equal(t, id, line["record_id"])
	assert.Equal(t, sess.UserID.String(), line["user_id"])
	assert.Equal(t, "Doctor", line["role"])
	assert.Equal(t, "follow-up review", line["reason"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}
