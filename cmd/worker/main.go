package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/timelogic/wfm-api/internal/config"
	"github.com/timelogic/wfm-api/internal/email"
	"github.com/timelogic/wfm-api/internal/repository/postgres"
	"github.com/timelogic/wfm-api/pkg/logger"
	redisbroker "github.com/timelogic/wfm-api/pkg/messaging/redis"
	"github.com/timelogic/wfm-api/pkg/metrics"
	"github.com/timelogic/wfm-api/pkg/worker"
)

// envOverrides lets deployments tune the standalone worker without touching
// the shared YAML file.
type envOverrides struct {
	BatchSize           int `envconfig:"OUTBOX_BATCH_SIZE"`
	PollIntervalSeconds int `envconfig:"OUTBOX_POLL_INTERVAL_SECONDS"`
	RetryAttempts       int `envconfig:"OUTBOX_RETRY_ATTEMPTS"`
	HealthPort          int `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var overrides envOverrides
	if err := envconfig.Process("wfm", &overrides); err != nil {
		log.Fatal().Err(err).Msg("failed to read environment overrides")
	}
	if overrides.BatchSize > 0 {
		cfg.Outbox.BatchSize = overrides.BatchSize
	}
	if overrides.PollIntervalSeconds > 0 {
		cfg.Outbox.PollIntervalSeconds = overrides.PollIntervalSeconds
	}
	if overrides.RetryAttempts > 0 {
		cfg.Outbox.MaxRetries = overrides.RetryAttempts
	}

	appLogger := logger.NewLogger(nil)
	m := metrics.NewMetrics("wfm_worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	var emailSvc email.Service = email.NoopService{}
	if cfg.SMTP.Enabled {
		emailSvc = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, emailSvc, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second,
		RetryAttempts: cfg.Outbox.MaxRetries,
	}, appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startHealthServer(overrides.HealthPort, appLogger)
	go processor.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")
	cancel()
}

func startHealthServer(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		addr := ":" + strconv.Itoa(port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.Error(err, "Health check server failed")
		}
	}()
}
