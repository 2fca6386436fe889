package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/timelogic/wfm-api/internal/config"
	"github.com/timelogic/wfm-api/internal/email"
	authHandler "github.com/timelogic/wfm-api/internal/handler/auth"
	notificationHandler "github.com/timelogic/wfm-api/internal/handler/notification"
	"github.com/timelogic/wfm-api/internal/middleware"
	"github.com/timelogic/wfm-api/internal/repository/postgres"
	"github.com/timelogic/wfm-api/internal/router"
	auditService "github.com/timelogic/wfm-api/internal/service/audit"
	authService "github.com/timelogic/wfm-api/internal/service/auth"
	notificationService "github.com/timelogic/wfm-api/internal/service/notification"
	pkgauth "github.com/timelogic/wfm-api/pkg/auth"
	"github.com/timelogic/wfm-api/pkg/logger"
	redisbroker "github.com/timelogic/wfm-api/pkg/messaging/redis"
	"github.com/timelogic/wfm-api/pkg/metrics"
	"github.com/timelogic/wfm-api/pkg/security"
	"github.com/timelogic/wfm-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	m := metrics.NewMetrics("wfm_api")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(baseRepo)
	userRepo := postgres.NewUserRepository(baseRepo)
	departmentRepo := postgres.NewDepartmentRepository(baseRepo)
	leaveRepo := postgres.NewLeaveRepository(baseRepo)
	auditRepo := postgres.NewAuditRepository(baseRepo)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	// Services
	auditor := auditService.NewService(auditRepo)
	notificationSvc := notificationService.NewService(notificationRepo, userRepo, departmentRepo, leaveRepo, auditor)
	jwtSvc := pkgauth.NewJWTService(pkgauth.Config{
		Secret:             cfg.JWT.Secret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		ExpiryHours:        cfg.JWT.ExpiryHours,
		RefreshExpiryHours: cfg.JWT.RefreshExpiryHours,
	})
	hasher := security.NewBcryptHasher(0)
	authSvc := authService.NewService(userRepo, jwtSvc, hasher, auditor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := notificationSvc.SeedTypes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed notification types")
	}

	// Outbox delivery
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

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, emailSvc, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second,
	}, appLogger, m)
	go outboxProcessor.Start(ctx)

	cleanup := worker.NewExpiryCleanup(notificationSvc, cfg.Notifications.CleanupInterval(), appLogger, m)
	go cleanup.Start(ctx)

	// HTTP surface
	authMw := middleware.NewAuthMiddleware(jwtSvc)
	r := router.NewRouter(
		authMw,
		authHandler.NewHandler(authSvc),
		notificationHandler.NewHandler(notificationSvc),
		m,
		router.Config{
			RateLimit:  rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:  cfg.Server.RateLimitBurst,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
