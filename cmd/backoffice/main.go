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

	"github.com/backoffice/backoffice/cmd/backoffice/cli"
	"github.com/backoffice/backoffice/internal/app"
	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/interfaces"
	"github.com/backoffice/backoffice/internal/observability"
	"github.com/backoffice/backoffice/internal/platform/cache"
	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/roles"
	"github.com/backoffice/backoffice/internal/session"
	"github.com/backoffice/backoffice/internal/shared"
	"github.com/backoffice/backoffice/internal/token"
	"github.com/backoffice/backoffice/internal/users"
	"github.com/backoffice/backoffice/jobs"
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

	dbpool, err := db.New(ctx, cfg.DBOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	sqlDB := db.SQL(dbpool)
	defer func() { _ = sqlDB.Close() }()

	rbacService := rbac.NewService(sqlDB)

	if len(os.Args) > 1 && os.Args[1] == "seed-permissions" {
		opts, err := cli.ParseSeedFlags(os.Args[2:], os.Stderr)
		if err != nil {
			os.Exit(2)
		}
		os.Exit(cli.SeedCommand(ctx, rbacService, opts))
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	accessCodec, err := token.NewAccessCodec(cfg.JWTSecret, cfg.JWTDuration.Duration())
	if err != nil {
		logger.Error("init access codec", slog.Any("error", err))
		os.Exit(1)
	}
	refreshCodec, err := token.NewRefreshCodec(cfg.JWTRefreshSecret, cfg.JWTRefreshDuration.Duration())
	if err != nil {
		logger.Error("init refresh codec", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(sqlDB)

	queueOpts := cfg.QueueRedisOpt()
	jobClient := jobs.NewClient(queueOpts)
	defer func() { _ = jobClient.Close() }()
	inspector := asynq.NewInspector(queueOpts)
	defer func() { _ = inspector.Close() }()

	sessionStore := session.NewStore(redisClient)
	authService := auth.NewService(auth.NewRepository(sqlDB), sessionStore, accessCodec, refreshCodec, auth.ServiceOptions{
		SessionTTL: cfg.SessionTTL(),
		Logger:     logger,
	})
	authMiddleware := auth.Middleware{Access: accessCodec, Refresh: refreshCodec, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, authMiddleware, auth.HandlerOptions{
		LoginLimiter: app.LoginRateLimiter(cfg.LoginRateLimit),
		Notifier:     jobClient,
		Auditor:      auditLogger,
		Events:       metrics,
	})

	rbacMiddleware := rbac.Middleware{Resolver: rbacService, Logger: logger, Observer: metrics}
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	usersService := users.NewService(users.NewRepository(sqlDB), authService)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	rolesService := roles.NewService(roles.NewRepository(sqlDB), rbacService, auditLogger, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	interfacesService := interfaces.NewService(interfaces.NewRepository(sqlDB))
	interfacesHandler := interfaces.NewHandler(logger, interfacesService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     authMiddleware,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		InterfacesHandler:  interfacesHandler,
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
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
