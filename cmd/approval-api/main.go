package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/quotedesk/approval-api/api/swagger"
	"github.com/quotedesk/approval-api/internal/handler"
	"github.com/quotedesk/approval-api/internal/middleware"
	"github.com/quotedesk/approval-api/internal/migrations"
	"github.com/quotedesk/approval-api/internal/repository"
	"github.com/quotedesk/approval-api/internal/service"
	"github.com/quotedesk/approval-api/pkg/cache"
	"github.com/quotedesk/approval-api/pkg/config"
	"github.com/quotedesk/approval-api/pkg/database"
	"github.com/quotedesk/approval-api/pkg/export"
	"github.com/quotedesk/approval-api/pkg/logger"
	corsmiddleware "github.com/quotedesk/approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/quotedesk/approval-api/pkg/middleware/requestid"
)

// @title Quote Approval API
// @version 1.0.0
// @description Sequential multi-party approval workflows for quote documents.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(db, migrations.FS); err != nil {
			sugar.Fatalw("failed to run migrations", "error", err)
		}
		sugar.Infow("database schema up to date")
	}

	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			sugar.Warnw("redis unavailable, queue caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})

	notifier := service.NewNotificationService(service.NotificationConfig{
		WebhookURL: cfg.Notifications.WebhookURL,
		Timeout:    cfg.Notifications.Timeout,
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	workflowSvc := service.NewWorkflowService(workflowRepo, userRepo, logr,
		service.WithQueueCache(cacheRepo, cfg.Workflows.QueueCacheTTL),
		service.WithNotifier(notifier),
		service.WithMetrics(metricsSvc),
	)

	workflowHandler := handler.NewWorkflowHandler(workflowSvc, nil)
	if cfg.Workflows.ExportEnabled {
		exportSvc := service.NewExportService(workflowRepo, logr, export.NewCSVExporter(), export.NewPDFExporter())
		workflowHandler = handler.NewWorkflowHandler(workflowSvc, exportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.Register(r, handler.RouterConfig{
		Auth:      handler.NewAuthHandler(authSvc),
		Workflows: workflowHandler,
		Metrics:   handler.NewMetricsHandler(metricsSvc),
		AuthSvc:   authSvc,
		APIPrefix: cfg.APIPrefix,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}
