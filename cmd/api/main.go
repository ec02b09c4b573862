package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/config"
	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/hospital-api/internal/handler/auth"
	departmentHandler "github.com/jwalitptl/hospital-api/internal/handler/department"
	healthHandler "github.com/jwalitptl/hospital-api/internal/handler/health"
	prescriptionHandler "github.com/jwalitptl/hospital-api/internal/handler/prescription"
	promHandler "github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	userHandler "github.com/jwalitptl/hospital-api/internal/handler/user"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/internal/router"
	appointmentService "github.com/jwalitptl/hospital-api/internal/service/appointment"
	authService "github.com/jwalitptl/hospital-api/internal/service/auth"
	departmentService "github.com/jwalitptl/hospital-api/internal/service/department"
	eventService "github.com/jwalitptl/hospital-api/internal/service/event"
	prescriptionService "github.com/jwalitptl/hospital-api/internal/service/prescription"
	userService "github.com/jwalitptl/hospital-api/internal/service/user"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type repositories struct {
	appointments  repository.AppointmentRepository
	prescriptions repository.PrescriptionRepository
	users         repository.UserRepository
	departments   repository.DepartmentRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	health        map[string]healthHandler.Pinger
	close         func() error
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig) (*repositories, error) {
	if cfg.Driver == "memory" {
		store := memory.NewStore()
		log.Warn().Msg("using the in-memory store; data is lost on exit and events are not published")
		return &repositories{
			appointments:  memory.NewAppointmentRepository(store),
			prescriptions: memory.NewPrescriptionRepository(store),
			users:         memory.NewUserRepository(store),
			departments:   memory.NewDepartmentRepository(store),
			outbox:        memory.NewOutboxRepository(store),
			tx:            store.TxManager(),
			close:         func() error { return nil },
		}, nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("database migrations applied")
	}

	base := postgres.NewBaseRepository(db)
	return &repositories{
		appointments:  postgres.NewAppointmentRepository(base),
		prescriptions: postgres.NewPrescriptionRepository(base),
		users:         postgres.NewUserRepository(base),
		departments:   postgres.NewDepartmentRepository(base),
		outbox:        postgres.NewOutboxRepository(base),
		tx:            postgres.NewTxManager(base),
		health:        map[string]healthHandler.Pinger{"database": db},
		close:         db.Close,
	}, nil
}

func setupLogger(cfg config.LogConfig) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(cfg.Level); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	repos, err := openRepositories(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer repos.close()

	// Metrics share the registry served at /metrics
	metricsHandler := promHandler.New()
	m := metrics.NewMetrics(cfg.Server.MetricsPrefix, "", metricsHandler.Registry())

	// Initialize services
	validate := validator.New()
	events := eventService.NewRecorder(repos.outbox, m)
	appointmentSvc := appointmentService.NewService(repos.appointments, repos.users, repos.departments, repos.tx, events, validate, m)
	prescriptionSvc := prescriptionService.NewService(repos.prescriptions, repos.appointments, appointmentSvc, repos.tx, events, validate, m)
	userSvc := userService.NewService(repos.users, repos.appointments, repos.prescriptions, repos.tx, events, validate)
	departmentSvc := departmentService.NewService(repos.departments, validate)
	if n, err := departmentSvc.EnsureDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed departments")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("seeded default departments")
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL())
	sessions := session.NewStore(10 * time.Minute)
	authSvc := authService.NewService(repos.users, tokens, security.NewBcryptHasher(0), sessions, validate)

	// Setup router
	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Auth:         authHandler.NewHandler(authSvc),
		Appointment:  appointmentHandler.NewHandler(appointmentSvc),
		Prescription: prescriptionHandler.NewHandler(prescriptionSvc),
		User:         userHandler.NewHandler(userSvc),
		Department:   departmentHandler.NewHandler(departmentSvc),
		Health:       healthHandler.NewHandler(repos.health),
		Metrics:      metricsHandler,
	}, router.Config{
		Mode:          cfg.Server.Mode,
		RateLimit:     cfg.RateLimit.RPS,
		RateBurst:     cfg.RateLimit.Burst,
		CORSConfig:    middleware.CORSConfig{AllowOrigins: cfg.CORS.AllowOrigins, MaxAge: 12 * time.Hour},
		MetricsPrefix: cfg.Server.MetricsPrefix,
		Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	})
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
