package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/user"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the admin user routes behind requireAdmin and the
// doctor directory for every signed-in user.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	users := r.Group("/users", requireAdmin)
	{
		users.GET("", h.ListUsers)
		users.GET("/pending", h.ListPending)
		users.GET("/role/:role", h.ListByRole)
		users.GET("/:email", h.GetUser)
		users.PUT("/:email", h.UpdateUser)
		users.PUT("/:email/verify", h.VerifyUser)
		users.DELETE("/:email", h.DeleteUser)
	}

	r.GET("/doctors", h.ListDoctors)
}

func (h *Handler) ListUsers(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	filter := model.UserFilter{
		Department: c.Query("department"),
		Name:       c.Query("name"),
	}
	if role := c.Query("role"); role != "" {
		r := model.Role(role)
		filter.Role = &r
	}

	users, err := h.service.List(c.Request.Context(), sess, filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, users)
}

func (h *Handler) ListPending(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	users, err := h.service.ListPending(c.Request.Context(), sess)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, users)
}

func (h *Handler) ListByRole(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	users, err := h.service.ListByRole(c.Request.Context(), sess, model.Role(c.Param("role")))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	u, err := h.service.Get(c.Request.Context(), sess, c.Param("email"))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.UpdateUserRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.Fail(c, err)
		return
	}

	u, err := h.service.Update(c.Request.Context(), sess, c.Param("email"), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, u)
}

func (h *Handler) VerifyUser(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	u, err := h.service.Verify(c.Request.Context(), sess, c.Param("email"))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	sess, err := handler.CurrentSession(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), sess, c.Param("email")); err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.Response{Status: handler.StatusSuccess, Message: "user deleted"})
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context(), c.Query("department"))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, doctors)
}
