// Package apitest runs the full HTTP stack over the memory store.
package apitest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/hospital-api/internal/handler/auth"
	departmentHandler "github.com/jwalitptl/hospital-api/internal/handler/department"
	healthHandler "github.com/jwalitptl/hospital-api/internal/handler/health"
	prescriptionHandler "github.com/jwalitptl/hospital-api/internal/handler/prescription"
	promHandler "github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	userHandler "github.com/jwalitptl/hospital-api/internal/handler/user"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/router"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	authService "github.com/jwalitptl/hospital-api/internal/service/auth"
	"github.com/jwalitptl/hospital-api/internal/service/department"
	"github.com/jwalitptl/hospital-api/internal/service/prescription"
	"github.com/jwalitptl/hospital-api/internal/service/user"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/internal/testutil"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/security"
)

type Server struct {
	*testutil.Fixture
	HTTP   *httptest.Server
	Engine *gin.Engine
}

// NewServer starts the API on a loopback port. It is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := testutil.NewFixture(t)

	appointments := appointment.NewService(f.Appointments, f.Users, f.Departments, f.Tx, f.Events, f.Validator, f.Metrics,
		appointment.WithClock(testutil.Clock))
	prescriptions := prescription.NewService(f.Prescriptions, f.Appointments, appointments, f.Tx, f.Events, f.Validator, f.Metrics,
		prescription.WithClock(testutil.Clock))
	users := user.NewService(f.Users, f.Appointments, f.Prescriptions, f.Tx, f.Events, f.Validator)
	departments := department.NewService(f.Departments, f.Validator)

	tokens := auth.NewTokenManager("test-secret", "hospital-api-test", time.Hour)
	authSvc := authService.NewService(f.Users, tokens, security.NewBcryptHasher(4), session.NewStore(time.Minute), f.Validator)

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Auth:         authHandler.NewHandler(authSvc),
		Appointment:  appointmentHandler.NewHandler(appointments),
		Prescription: prescriptionHandler.NewHandler(prescriptions),
		User:         userHandler.NewHandler(users),
		Department:   departmentHandler.NewHandler(departments),
		Health:       healthHandler.NewHandler(nil),
		Metrics:      promHandler.New(),
	}, router.Config{Mode: gin.TestMode})
	r.Setup()

	srv := httptest.NewServer(r.Engine())
	t.Cleanup(srv.Close)

	return &Server{
		Fixture: f,
		HTTP:    srv,
		Engine:  r.Engine(),
	}
}

// URL is the base URL clients should be given.
func (s *Server) URL() string {
	return s.HTTP.URL
}
