package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/clinicore/scheduling-api/config"
	"github.com/clinicore/scheduling-api/internal/repository/postgres"
	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/messaging"
	"github.com/clinicore/scheduling-api/pkg/messaging/redis"
	"github.com/clinicore/scheduling-api/pkg/metrics"
	"github.com/clinicore/scheduling-api/pkg/worker"
)

const healthAddr = ":8081"

func main() {
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

	broker, err := redis.NewBroker(cfg.Redis.BrokerConfig(), appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewDBStatsCollector(db.DB, cfg.Database.Name))
	m := metrics.NewMetrics(registry, "scheduling_worker")

	outboxRepo := postgres.NewOutboxRepository(db)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ProcessorConfig(), appLogger, m)
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthSrv := startHealthServer(db, broker, registry, appLogger)

	go cleanup.Start(ctx)

	appLogger.Info("Outbox worker started",
		"channel", cfg.Outbox.Channel,
		"batch_size", cfg.Outbox.BatchSize,
		"poll_interval", cfg.Outbox.PollInterval.String(),
	)
	processor.Start(ctx)

	appLogger.Info("Shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Health server forced to shutdown")
	}
}

// startHealthServer exposes liveness, readiness and metrics for the
// worker on its own port.
func startHealthServer(db *sqlx.DB, broker messaging.Broker, registry *prometheus.Registry, appLogger *logger.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := broker.Ping(r.Context()); err != nil {
			http.Error(w, "broker unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error(err, "Health server failed")
		}
	}()

	return srv
}
