package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.RescheduleAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.BookAppointmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.Book(c.Request.Context(), sess, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Created(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.Get(c.Request.Context(), sess, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, apt)
}

// ListAppointments takes an optional status and scope=upcoming|past.
func (h *Handler) ListAppointments(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var opts appointment.ListOptions
	if status := c.Query("status"); status != "" {
		s := model.AppointmentStatus(status)
		opts.Status = &s
	}

	seq, err := h.service.List(c.Request.Context(), sess, opts)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	switch scope := c.Query("scope"); scope {
	case "":
		handler.OK(c, handler.Collect(seq))
	case "upcoming", "past":
		upcoming, past := appointment.Partition(seq, h.service.Today())
		out := upcoming
		if scope == "past" {
			out = past
		}
		if out == nil {
			out = []*model.Appointment{}
		}
		handler.OK(c, out)
	default:
		handler.Fail(c, apperrors.Validation([]apperrors.FieldError{{
			Field:   "scope",
			Message: "must be one of: upcoming, past",
		}}))
	}
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), sess, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, apt)
}

// UpdateStatus reads status and cancellationReason from the query string.
func (h *Handler) UpdateStatus(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), sess, id, c.Query("status"), c.Query("cancellationReason"))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, apt)
}
