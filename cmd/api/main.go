package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/clinicore/scheduling-api/config"
	appointmentHandler "github.com/clinicore/scheduling-api/internal/handler/appointment"
	doctorHandler "github.com/clinicore/scheduling-api/internal/handler/doctor"
	healthHandler "github.com/clinicore/scheduling-api/internal/handler/health"
	patientHandler "github.com/clinicore/scheduling-api/internal/handler/patient"
	prometheusHandler "github.com/clinicore/scheduling-api/internal/handler/prometheus"
	"github.com/clinicore/scheduling-api/internal/middleware"
	"github.com/clinicore/scheduling-api/internal/repository/postgres"
	"github.com/clinicore/scheduling-api/internal/router"
	appointmentService "github.com/clinicore/scheduling-api/internal/service/appointment"
	doctorService "github.com/clinicore/scheduling-api/internal/service/doctor"
	eventService "github.com/clinicore/scheduling-api/internal/service/event"
	patientService "github.com/clinicore/scheduling-api/internal/service/patient"
	"github.com/clinicore/scheduling-api/migrations"
	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/messaging/redis"
	"github.com/clinicore/scheduling-api/pkg/metrics"
	"github.com/clinicore/scheduling-api/pkg/worker"
)

func main() {
	// Missing .env is fine; containers configure through real env vars.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Log.LoggerConfig())

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrations.RunPostgres(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewDBStatsCollector(db.DB, cfg.Database.Name))
	m := metrics.NewMetrics(registry, "scheduling_api")

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txManager := postgres.NewTxManager(db)

	// Services
	eventSvc := eventService.NewService(outboxRepo)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo,
		patientRepo,
		doctorRepo,
		txManager,
		eventSvc,
		m,
		appLogger,
		cfg.Availability.ServiceConfig(),
	)
	patientSvc := patientService.NewService(patientRepo, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	doctorSvc := doctorService.NewService(doctorRepo, cfg.Cache.TTL, cfg.Cache.CleanupInterval)

	broker, err := redis.NewBroker(cfg.Redis.BrokerConfig(), appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Handlers
	promHandler := prometheusHandler.New(registry, m)
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	r := router.New(
		router.Config{
			Mode:           cfg.Server.Mode,
			RateLimitRPS:   cfg.RateLimit.RPS,
			RateLimitBurst: cfg.RateLimit.Burst,
			Timeout:        middleware.TimeoutConfig{Duration: cfg.Server.Timeout()},
			CORS:           corsConfig,
		},
		appLogger,
		promHandler,
		appointmentHandler.NewHandler(appointmentSvc),
		patientHandler.NewHandler(patientSvc),
		doctorHandler.NewHandler(doctorSvc),
		healthHandler.NewHandler(db, broker),
	)

	// The outbox processor runs inside the API as well as in the
	// dedicated worker binary; FOR UPDATE SKIP LOCKED keeps the two
	// from claiming the same events.
	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ProcessorConfig(), appLogger, m)
	go processor.Start(ctx)

	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, appLogger)
	go cleanup.Start(ctx)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("Starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
