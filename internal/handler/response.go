package handler

import (
	"errors"
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/session"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status    string                 `json:"status"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Errors    []apperrors.FieldError `json:"errors,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: StatusSuccess,
		Data:   data,
	}
}

// NewErrorResponse renders err for the client. Internal failures keep their
// detail out of the body.
func NewErrorResponse(err error, requestID string) (int, *ErrorResponse) {
	appErr := apperrors.From(err)
	msg := appErr.Message
	if appErr.Code == apperrors.ErrInternal {
		msg = "internal server error"
	}
	return appErr.StatusCode(), &ErrorResponse{
		Status:    StatusError,
		Code:      appErr.Code.String(),
		Message:   msg,
		Errors:    appErr.Fields,
		RequestID: requestID,
	}
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// Fail hands err to the error middleware, which writes the response.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// BindJSON decodes the body. Field rules are checked by the services, so a
// failure here means the body is not the expected JSON.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return apperrors.BadRequest("malformed request body: "+err.Error(), err)
	}
	return nil
}

func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation([]apperrors.FieldError{{Field: name, Message: "must be a valid id"}})
	}
	return id, nil
}

var errNoSession = errors.New("no session on request")

// CurrentSession returns the session the auth middleware attached.
func CurrentSession(c *gin.Context) (*session.Session, error) {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		return nil, apperrors.Unauthorized(errNoSession)
	}
	return sess, nil
}

// Collect drains seq into a slice that encodes as [] when empty.
func Collect[T any](seq iter.Seq[T]) []T {
	out := []T{}
	for v := range seq {
		out = append(out, v)
	}
	return out
}
