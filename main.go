package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-portal/internal/config"
	"github.com/SAP-F-2025/quiz-portal/internal/events"
	"github.com/SAP-F-2025/quiz-portal/internal/handlers"
	"github.com/SAP-F-2025/quiz-portal/internal/metrics"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories/casdoor"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-portal/internal/scheduler"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
	"github.com/SAP-F-2025/quiz-portal/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional; without it list and user caches are bypassed.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, caching disabled", "error", err)
			redisClient = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}
	repo := repoManager.GetRepository()

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	publisher, err := newEventPublisher(rootCtx, cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	smConfig := services.DefaultServiceManagerConfig()
	smConfig.AttemptGracePeriod = cfg.AttemptGracePeriod
	serviceManager := services.NewServiceManager(repo, slogLogger, validator.New(), publisher, smConfig)
	if err := serviceManager.Initialize(rootCtx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	m := metrics.New()

	sweeper, err := scheduler.NewSweeper(scheduler.Config{
		Schedule: cfg.SweepSchedule,
		Timezone: cfg.Timezone,
	}, serviceManager.Attempt(), slogLogger, m)
	if err != nil {
		log.Fatalf("Failed to initialize attempt sweeper: %v", err)
	}
	sweeper.Start()

	casdoorClient := casdoorsdk.NewClient(
		cfg.Casdoor.Endpoint,
		cfg.Casdoor.ClientID,
		cfg.Casdoor.ClientSecret,
		cfg.Casdoor.Cert,
		cfg.Casdoor.Organization,
		cfg.Casdoor.Application,
	)
	authMiddleware := handlers.NewCasdoorAuthMiddleware(casdoorClient, repo.User(), logger)

	var rateLimiter *handlers.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
		defer rateLimiter.Stop()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.SetupMiddleware(router, logger, m)

	handlers.NewHandlerManager(handlers.HandlerDeps{
		Services:    serviceManager,
		Logger:      logger,
		Auth:        authMiddleware.AuthMiddleware(),
		OAuth:       casdoorClient,
		Casdoor:     cfg.Casdoor,
		Metrics:     m,
		RateLimiter: rateLimiter,
	}).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	sweeper.Stop(ctx)
	stopBackground()

	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

// newEventPublisher uses Kafka when brokers are configured and an in-process
// channel with an audit log subscriber otherwise.
func newEventPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (events.EventPublisher, error) {
	if len(cfg.Kafka.Brokers) > 0 {
		logger.Info("Publishing events to Kafka", "brokers", cfg.Kafka.Brokers, "topic_prefix", cfg.Kafka.TopicPrefix)
		return events.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, logger)
	}

	publisher, pubSub := events.NewInProcessEventPublisher(cfg.Kafka.TopicPrefix, logger)
	if err := events.StartAuditLog(ctx, pubSub, cfg.Kafka.TopicPrefix, logger); err != nil {
		return nil, err
	}
	return publisher, nil
}
