package router

import (
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
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
)

type Handlers struct {
	Auth         *authHandler.Handler
	Appointment  *appointmentHandler.Handler
	Prescription *prescriptionHandler.Handler
	User         *userHandler.Handler
	Department   *departmentHandler.Handler
	Health       *healthHandler.Handler
	Metrics      *promHandler.Handler
}

type Config struct {
	Mode          string
	RateLimit     float64
	RateBurst     int
	CORSConfig    middleware.CORSConfig
	MetricsPrefix string
	Timeout       time.Duration
	MaxBodySize   int64
	HSTSMaxAge    int

	// DisableCompression turns off gzip responses.
	DisableCompression bool
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config Config) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "hospital_api"
	}

	engine := gin.New()
	httpMetrics := middleware.NewHTTPMetrics(config.MetricsPrefix, handlers.Metrics.Registry())

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		httpMetrics.Middleware(),
		middleware.ErrorHandler(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
		middleware.SecurityHeaders(middleware.SecurityConfig{HSTSMaxAge: config.HSTSMaxAge}),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.MaxBodySize),
		middleware.Version(middleware.DefaultVersionConfig()),
	)
	if !config.DisableCompression {
		engine.Use(middleware.Compress(middleware.DefaultCompressConfig()))
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}
}

func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine.Group(""))
	r.handlers.Metrics.RegisterRoutes(r.engine)

	api := r.engine.Group("/api")

	// Public routes
	r.handlers.Auth.RegisterRoutes(api, r.auth.Authenticate())

	// Protected routes
	protected := api.Group("", r.auth.Authenticate())
	records := protected.Group("", middleware.RecordAccess())
	r.handlers.Appointment.RegisterRoutes(records)
	r.handlers.Prescription.RegisterRoutes(records)
	r.handlers.User.RegisterRoutes(protected, r.auth.RequirePermission("manage users", func(p rbac.Permissions) bool {
		return p.CanManageUsers
	}))
	r.handlers.Department.RegisterRoutes(protected, r.auth.RequirePermission("manage departments", func(p rbac.Permissions) bool {
		return p.CanManageDepartments
	}))
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
