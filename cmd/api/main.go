package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/api/handlers"
	"github.com/linskybing/csvflow/internal/api/middleware"
	"github.com/linskybing/csvflow/internal/api/routes"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/config/db"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/observability"
	"github.com/linskybing/csvflow/internal/repository"
	"github.com/linskybing/csvflow/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title csvflow API
// @version 1.0
// @description Upload CSV files, run them through the processing workflow and track their status.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	// Load configuration from environment variables, .env and CONFIG_FILE
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	gdb, err := db.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer func() {
		_ = db.Close(gdb)
	}()
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	blobs, err := storage.New(cfg.Blob)
	if err != nil {
		logger.Fatal("blob storage unavailable", zap.Error(err))
	}

	checks := map[string]handlers.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var limiter middleware.Limiter = middleware.NewLocalLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = rdb.Close()
		}()
		limiter = middleware.NewRedisLimiter(rdb, cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	var notifier messaging.Notifier = messaging.NopNotifier{}
	if cfg.RabbitMQ.URL != "" {
		pub, err := messaging.NewPublisher(cfg.RabbitMQ, logger.Named("amqp"))
		if err != nil {
			logger.Fatal("rabbitmq unavailable", zap.Error(err))
		}
		defer func() {
			_ = pub.Close()
		}()
		notifier = pub
	}

	if cfg.Auth.CallbackSecret == "" {
		logger.Warn("CALLBACK_SECRET is not set; the runner callback endpoint accepts unauthenticated requests")
	}

	repos := repository.NewRepositories(gdb)
	services := application.New(cfg, repos, blobs, notifier, logger)
	h := handlers.New(cfg, services, checks, middleware.OriginChecker(cfg.HTTP.CORSOrigins), logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(cfg, h, services.Auth, limiter, logger.Named("http"))

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting API server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
