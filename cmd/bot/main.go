package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/community-service/internal/api/http"
	"github.com/spec-kit/community-service/internal/api/http/handlers"
	"github.com/spec-kit/community-service/internal/auth"
	"github.com/spec-kit/community-service/internal/config"
	"github.com/spec-kit/community-service/internal/dialog"
	"github.com/spec-kit/community-service/internal/directory"
	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/gateway"
	"github.com/spec-kit/community-service/internal/observability"
	"github.com/spec-kit/community-service/internal/persistence"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/internal/service"
	"github.com/spec-kit/community-service/internal/snapshot"
	"github.com/spec-kit/community-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := persistence.NewSQLite(cfg.SQLite, logger)
	if err != nil {
		logger.Fatal("failed to open sqlite", zap.Error(err))
	}
	defer db.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	feedbackRepo := repository.NewFeedbackRepository(db.Handle())
	featureRepo := repository.NewFeatureRequestRepository(db.Handle())
	ticketRepo := repository.NewSupportTicketRepository(db.Handle())

	users := directory.NewStatic(cfg.Gateway.AdminUserIDs)

	feedbackService := service.NewFeedbackService(service.FeedbackDependencies{
		FeedbackRepo: feedbackRepo,
		FeatureRepo:  featureRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	featureService := service.NewFeatureService(service.FeatureDependencies{
		FeatureRepo: featureRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	supportService := service.NewSupportService(service.SupportDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		FeedbackRepo: feedbackRepo,
		FeatureRepo:  featureRepo,
		TicketRepo:   ticketRepo,
		Directory:    users,
		Cache:        redis,
		CacheTTL:     cfg.Redis.StatsTTL(),
		Logger:       logger,
	})
	statsService.RegisterInvalidation(dispatcher)

	snapshots := worker.StartSnapshotWorker(dispatcher, snapshot.NewWriter(cfg.Snapshot), logger, cfg.Snapshot.QueueDepth)
	defer snapshots.Stop()

	bridge := gateway.NewWebhookGateway(cfg.Gateway, logger)
	workflows := dialog.NewDispatcher(dialog.Dependencies{
		Gateway:         bridge,
		Users:           users,
		FeedbackService: feedbackService,
		FeatureService:  featureService,
		SupportService:  supportService,
		StatsService:    statsService,
		Metrics:         metrics,
		Logger:          logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokenManager, users)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, db, redis),
		Events:         handlers.NewEventsHandler(workflows),
		Stats:          handlers.NewStatsHandler(statsService),
		Tokens:         handlers.NewTokensHandler(tokenManager, users, cfg.Auth.JWTSecret),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
