package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/email"
	healthHandler "github.com/jwalitptl/hospital-api/internal/handler/health"
	promHandler "github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	"github.com/jwalitptl/hospital-api/internal/notification"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	eventService "github.com/jwalitptl/hospital-api/internal/service/event"
	scheduler "github.com/jwalitptl/hospital-api/internal/worker"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/worker"
)

func setupHealthCheck(port int, deps map[string]healthHandler.Pinger, metricsHandler *promHandler.Handler, logger *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	healthHandler.NewHandler(deps).RegisterRoutes(engine.Group(""))
	metricsHandler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("The worker reads the outbox from postgres; the memory driver is API-only")
	}

	// Initialize logger
	logger := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		Service: "hospital-worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.BrokerConfig(), logger.Named("broker").Zerolog())
	if err != nil {
		logger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	metricsHandler := promHandler.New()
	m := metrics.NewMetrics(cfg.Server.MetricsPrefix, "worker", metricsHandler.Registry())

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	userRepo := postgres.NewUserRepository(base)
	txManager := postgres.NewTxManager(base)

	// Outbox -> Redis
	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ProcessorConfig(), logger.Named("outbox"), m)

	// Redis -> email
	var mailer email.Service = email.NewLogService(logger.Named("email"))
	if cfg.SMTP.Enabled() {
		mailer = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	notifier := notification.NewNotifier(userRepo, mailer, logger.Named("notifier"), m)
	if err := notifier.Start(ctx, messaging.NewBrokerAdapter(broker, logger.Named("subscriber").Zerolog())); err != nil {
		logger.Fatal(err, "Failed to start notifier")
	}

	// Scheduled jobs
	reminder := scheduler.NewFollowUpReminder(appointmentRepo, txManager, eventService.NewRecorder(outboxRepo, m), logger.Named("follow_up"))
	cleaner := worker.NewOutboxCleaner(outboxRepo, cfg.Outbox.Retention, logger.Named("outbox_cleanup"), m)

	jobs := scheduler.NewScheduler(logger.Named("scheduler"), 5*time.Minute)
	if err := jobs.Add("follow_up_reminders", cfg.Worker.FollowUpSchedule, func(ctx context.Context) error {
		_, err := reminder.Run(ctx)
		return err
	}); err != nil {
		logger.Fatal(err, "Failed to schedule follow-up reminders")
	}
	if err := jobs.Add("outbox_cleanup", cfg.Worker.CleanupSchedule, func(ctx context.Context) error {
		_, err := cleaner.Cleanup(ctx)
		return err
	}); err != nil {
		logger.Fatal(err, "Failed to schedule outbox cleanup")
	}

	// Setup health check endpoints
	health := setupHealthCheck(cfg.Worker.HealthPort, map[string]healthHandler.Pinger{
		"database": db,
		"redis":    broker,
	}, metricsHandler, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		jobs.Start(ctx)
	}()

	logger.Info("Worker started")
	<-ctx.Done()
	logger.Info("Shutting down...")

	wg.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = health.Shutdown(shutdownCtx)
}
