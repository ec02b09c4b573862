package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// failure is the /auth error body: the {success, message} shape plus the
// error code and field errors.
type failure struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts signup and login on r, and logout behind
// authenticate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/logout", authenticate, h.Logout)
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := handler.BindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.svc.Signup(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := handler.BindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.svc.Logout(c.Request.Context(), sess)
	c.JSON(http.StatusOK, model.AuthResponse{Success: true, Message: "Logged out"})
}

// fail writes the error itself and still records it for the error
// middleware to log.
func (h *Handler) fail(c *gin.Context, err error) {
	status, body := handler.NewErrorResponse(err, "")
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, failure{
		Success: false,
		Message: body.Message,
		Code:    body.Code,
		Errors:  body.Errors,
	})
}
