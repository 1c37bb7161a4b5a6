package main

import (
	"context"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/app-platform/internal/api/http"
	"github.com/spec-kit/app-platform/internal/api/http/handlers"
	"github.com/spec-kit/app-platform/internal/auth"
	"github.com/spec-kit/app-platform/internal/billing"
	"github.com/spec-kit/app-platform/internal/config"
	"github.com/spec-kit/app-platform/internal/dnscheck"
	"github.com/spec-kit/app-platform/internal/events"
	"github.com/spec-kit/app-platform/internal/monitor"
	"github.com/spec-kit/app-platform/internal/observability"
	"github.com/spec-kit/app-platform/internal/persistence"
	"github.com/spec-kit/app-platform/internal/repository"
	"github.com/spec-kit/app-platform/internal/service"
	"github.com/spec-kit/app-platform/internal/webhook"
	"github.com/spec-kit/app-platform/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	appRepo := repository.NewAppRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)

	validator := dnscheck.NewValidator(nil, cfg.Platform.RootDomain,
		reservedPrefixes(ctx, templateRepo, logger), cfg.Platform.DNSLookupTimeout())

	dispatcher := events.NewInMemoryDispatcher()
	webhooks := webhook.NewDispatcher(cfg.Provisioner, logger, metrics)
	defer webhooks.Close()

	notifier := service.NewProvisionNotifier(dispatcher, webhooks, logger)
	worker.StartProvisionNotifier(notifier, webhooks)

	gateway := billing.NewHTTPGateway(cfg.Billing, logger)

	appService := service.NewAppService(service.AppDependencies{
		AppRepo:      appRepo,
		UserRepo:     userRepo,
		TemplateRepo: templateRepo,
		Validator:    validator,
		Dispatcher:   dispatcher,
		Logger:       logger,
		IngressIP:    cfg.Platform.IngressIP,
	})
	accountService := service.NewAccountService(service.AccountDependencies{
		UserRepo:   userRepo,
		Apps:       appService,
		Gateway:    gateway,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
		BaseURL:    cfg.Platform.BaseURL,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	if cfg.Monitor.Enabled {
		sampler := monitor.New(appRepo, redis.Client, metrics, logger, cfg.Monitor.Interval())
		go func() {
			_ = sampler.Run(ctx)
		}()
	}

	go serveMetrics(cfg.App.MetricsAddr, metrics, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, accountService),
		Apps:           handlers.NewAppsHandler(appService, accountService),
		Templates:      handlers.NewTemplatesHandler(templateRepo),
		Hooks:          handlers.NewHooksHandler(appService, cfg.Provisioner.SharedSecret),
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

func reservedPrefixes(ctx context.Context, templates repository.TemplateRepository, logger *zap.Logger) []string {
	items, err := templates.ListActive(ctx)
	if err != nil {
		logger.Warn("loading template catalog failed; no reserved prefixes", zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(items))
	for _, tpl := range items {
		names = append(names, tpl.Name)
	}
	return names
}

func serveMetrics(addr string, metrics *observability.Metrics, logger *zap.Logger) {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	if err := nethttp.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
