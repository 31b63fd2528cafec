package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradyx/backoffice/internal/app"
	"github.com/tradyx/backoffice/internal/auth"
	"github.com/tradyx/backoffice/internal/cashregister"
	closing "github.com/tradyx/backoffice/internal/close"
	closehttp "github.com/tradyx/backoffice/internal/close/http"
	"github.com/tradyx/backoffice/internal/inventory"
	"github.com/tradyx/backoffice/internal/maintenance"
	"github.com/tradyx/backoffice/internal/observability"
	"github.com/tradyx/backoffice/internal/platform/cache"
	"github.com/tradyx/backoffice/internal/platform/db"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/sales"
	"github.com/tradyx/backoffice/internal/sales/customers"
	"github.com/tradyx/backoffice/internal/settings"
	"github.com/tradyx/backoffice/internal/shared"
	"github.com/tradyx/backoffice/internal/users"
	"github.com/tradyx/backoffice/jobs"
	"github.com/tradyx/backoffice/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.PGMigrate {
		applied, err := db.Migrate(ctx, dbpool, migrations.FS)
		if err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		for _, name := range applied {
			logger.Info("applied migration", slog.String("name", name))
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "backoffice_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	usersService := users.NewService(users.NewRepository(dbpool), auditLogger)
	if cfg.BootstrapAdminUsername != "" {
		created, err := usersService.EnsureAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword)
		if err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
		if created {
			logger.Info("bootstrap admin created", slog.String("username", cfg.BootstrapAdminUsername))
		}
	}
	rbacMiddleware := rbac.Middleware{Users: usersService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, rbacMiddleware)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, inventory.ServiceConfig{
		LowStockThreshold: cfg.LowStockThreshold,
	})

	salesService := sales.NewService(sales.NewRepository(dbpool), auditLogger, idempotencyStore, sales.ServiceConfig{
		Location:          cfg.Location(),
		LowStockThreshold: cfg.LowStockThreshold,
	})
	salesService.WithRecorder(metrics)

	money := shared.NewMoneyFormatter(cfg.CurrencySymbol, cfg.Locale)
	closeService := closing.NewService(closing.NewRepository(dbpool), auditLogger, money, cfg.Location())
	closeService.WithRecorder(metrics)

	cashService := cashregister.NewService(cashregister.NewRepository(dbpool))
	customersService := customers.NewService(customers.NewRepository(dbpool))
	maintenanceService := maintenance.NewService(maintenance.NewRepository(dbpool), cfg.Location())
	settingsCache := cache.NewJSONCache(redisClient, "backoffice:settings:", cfg.SettingsCacheTTL)
	settingsService := settings.NewService(settings.NewRepository(dbpool), settingsCache, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
		HealthCheck: func(r *http.Request) error {
			return dbpool.Ping(r.Context())
		},
		AuthHandler:        authHandler,
		SalesHandler:       sales.NewHandler(logger, salesService, rbacMiddleware),
		CloseHandler:       closehttp.NewHandler(logger, closeService, rbacMiddleware),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		CashHandler:        cashregister.NewHandler(logger, cashService, rbacMiddleware),
		CustomersHandler:   customers.NewHandler(logger, customersService, rbacMiddleware),
		MaintenanceHandler: maintenance.NewHandler(logger, maintenanceService, rbacMiddleware),
		SettingsHandler:    settings.NewHandler(logger, settingsService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
