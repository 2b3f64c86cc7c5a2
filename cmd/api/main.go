package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/internal/ai"
	httptransport "github.com/caseline/messenger-intake/internal/api/http"
	"github.com/caseline/messenger-intake/internal/api/http/handlers"
	"github.com/caseline/messenger-intake/internal/config"
	"github.com/caseline/messenger-intake/internal/eligibility"
	"github.com/caseline/messenger-intake/internal/events"
	"github.com/caseline/messenger-intake/internal/intake"
	"github.com/caseline/messenger-intake/internal/messenger"
	"github.com/caseline/messenger-intake/internal/nlu"
	"github.com/caseline/messenger-intake/internal/observability"
	"github.com/caseline/messenger-intake/internal/persistence"
	"github.com/caseline/messenger-intake/internal/repository"
	"github.com/caseline/messenger-intake/internal/service"
	"github.com/caseline/messenger-intake/internal/store"
	"github.com/caseline/messenger-intake/internal/worker"
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

	if !cfg.AnthropicConfigured() {
		logger.Warn("ANTHROPIC_API_KEY not configured; answer interpretation will rely on pattern matching")
	}
	if !cfg.FacebookConfigured() {
		logger.Warn("Messenger credentials not configured; replies cannot be delivered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var caseRepo repository.CaseRepository
	if pool := pg.PoolHandle(); pool != nil {
		caseRepo = repository.NewPostgresCaseRepository(pool)
	} else {
		caseRepo, err = repository.NewFileCaseRepository(cfg.Intake.DataDirectory, logger)
		if err != nil {
			logger.Fatal("failed to init case storage", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var deduper store.Deduper
	if redis.Ping(ctx) == nil {
		deduper = store.NewRedisDeduper(redis.Client, cfg.Intake.DedupWindow(), logger)
	} else {
		logger.Warn("redis unavailable; message dedup is process local")
		deduper = store.NewMemoryDeduper(cfg.Intake.DedupWindow())
	}

	conversations := store.NewConversationStore(logger)
	checker := eligibility.NewChecker(cfg.Intake.CriteriaFile, logger)
	aiClient := ai.NewClient(cfg.Anthropic, logger, metrics)
	interpreter := nlu.NewProcessor(aiClient, logger)
	engine := intake.NewEngine(interpreter, checker, logger)
	replier := messenger.NewClient(cfg.Facebook, logger)

	dispatcher := events.NewInMemoryDispatcher()

	conversationService := service.NewConversationService(service.ConversationDependencies{
		Conversations: conversations,
		Deduper:       deduper,
		Engine:        engine,
		CaseRepo:      caseRepo,
		Replier:       replier,
		Dispatcher:    dispatcher,
		FallbackReply: cfg.Intake.FallbackReply,
	}, logger)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)
	worker.StartSessionReaper(ctx, conversationService, cfg.Intake.InactivityTimeout(), cfg.Intake.ReapInterval(), logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg, conversationService)
	webhookHandler := handlers.NewWebhookHandler(cfg.Facebook, conversationService, logger)
	casesHandler := handlers.NewCasesHandler(caseRepo)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  healthHandler,
		Webhook: webhookHandler,
		Cases:   casesHandler,
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
