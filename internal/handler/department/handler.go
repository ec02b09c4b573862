package department

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/department"
)

type Handler struct {
	service *department.Service
}

func NewHandler(service *department.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts registry management behind requireAdmin. The list
// of active departments is open to every signed-in user.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	r.GET("/departments/active", h.ListActive)

	departments := r.Group("/departments", requireAdmin)
	{
		departments.POST("", h.CreateDepartment)
		departments.GET("", h.ListDepartments)
		departments.GET("/name/:name", h.GetByName)
		departments.GET("/:id", h.GetDepartment)
		departments.PUT("/:id", h.UpdateDepartment)
		departments.DELETE("/:id", h.DeleteDepartment)
	}
}

func (h *Handler) CreateDepartment(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.CreateDepartmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	d, err := h.service.Create(c.Request.Context(), sess, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Created(c, d)
}

func (h *Handler) ListDepartments(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	departments, err := h.service.List(c.Request.Context(), sess)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, departments)
}

func (h *Handler) ListActive(c *gin.Context) {
	departments, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, departments)
}

func (h *Handler) GetDepartment(c *gin.Context) {
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

	d, err := h.service.Get(c.Request.Context(), sess, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, d)
}

func (h *Handler) GetByName(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	d, err := h.service.GetByName(c.Request.Context(), sess, c.Param("name"))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, d)
}

func (h *Handler) UpdateDepartment(c *gin.Context) {
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

	var req model.UpdateDepartmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	d, err := h.service.Update(c.Request.Context(), sess, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, d)
}

func (h *Handler) DeleteDepartment(c *gin.Context) {
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

	if err := h.service.Delete(c.Request.Context(), sess, id); err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.Response{Status: handler.StatusSuccess, Message: "department deleted"})
}
