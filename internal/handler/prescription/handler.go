package prescription

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/prescription"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type Handler struct {
	service *prescription.Service
}

func NewHandler(service *prescription.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.CreatePrescription)
		prescriptions.GET("", h.ListPrescriptions)
		prescriptions.POST("/dispense", h.Dispense)
		prescriptions.GET("/patient-name/:name", h.ListForPatientName)
		prescriptions.GET("/patient-name/:name/match", h.FindForPatient)
		prescriptions.GET("/:id", h.GetPrescription)
		prescriptions.PUT("/:id", h.UpdatePrescription)
	}

	r.POST("/appointments/:id/complete", h.CompleteAppointment)
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	var req model.CreatePrescriptionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}
	h.create(c, &req)
}

// CompleteAppointment takes the prescription body and its appointment from
// the path.
func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.CreatePrescriptionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}
	req.AppointmentID = id
	h.create(c, &req)
}

func (h *Handler) create(c *gin.Context, req *model.CreatePrescriptionRequest) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	p, err := h.service.Create(c.Request.Context(), sess, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Created(c, p)
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var opts prescription.ListOptions
	if status := c.Query("status"); status != "" {
		s := model.DispenseStatus(status)
		opts.Status = &s
	}

	seq, err := h.service.List(c.Request.Context(), sess, opts)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, handler.Collect(seq))
}

func (h *Handler) GetPrescription(c *gin.Context) {
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

	p, err := h.service.Get(c.Request.Context(), sess, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, p)
}

func (h *Handler) ListForPatientName(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	seq, err := h.service.ListForPatientName(c.Request.Context(), sess, c.Param("name"))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, handler.Collect(seq))
}

func (h *Handler) FindForPatient(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var appointmentID *uuid.UUID
	if raw := c.Query("appointmentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.Fail(c, apperrors.Validation([]apperrors.FieldError{{Field: "appointmentId", Message: "must be a valid id"}}))
			return
		}
		appointmentID = &id
	}

	p, err := h.service.FindForPatient(c.Request.Context(), sess, c.Param("name"), appointmentID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, p)
}

func (h *Handler) UpdatePrescription(c *gin.Context) {
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

	var req model.UpdatePrescriptionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	p, err := h.service.Update(c.Request.Context(), sess, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, p)
}

func (h *Handler) Dispense(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.DispenseRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	p, err := h.service.Dispense(c.Request.Context(), sess, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, p)
}
