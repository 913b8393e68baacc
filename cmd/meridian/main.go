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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-mdm/meridian-mdm/internal/app"
	"github.com/meridian-mdm/meridian-mdm/internal/auth"
	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/groups"
	"github.com/meridian-mdm/meridian-mdm/internal/observability"
	"github.com/meridian-mdm/meridian-mdm/internal/permissions"
	"github.com/meridian-mdm/meridian-mdm/internal/roles"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
	"github.com/meridian-mdm/meridian-mdm/internal/users"
	"github.com/meridian-mdm/meridian-mdm/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	versions := auth.NewVersionStore(redisClient)
	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	// Global invalidation goes through the queue; the worker bumps the
	// version. Per-user bumps stay synchronous.
	refresher := jobs.NewQueueRefresher(jobsClient, versions)

	usersRepo := users.NewRepository(dbpool)
	rolesRepo := roles.NewRepository(dbpool)

	authService := auth.NewService(usersRepo, rolesRepo, tokens, versions)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.Middleware{Logger: logger, Service: authService}
	authzMiddleware := authz.Middleware{Logger: logger}

	metrics := observability.NewMetrics()

	permissionsRepo := permissions.NewRepository(dbpool)
	permissionsService := permissions.NewService(permissionsRepo, auditLogger, refresher, cfg.DefaultLocale)
	permissionsHandler := permissions.NewHandler(logger, permissionsService, authzMiddleware, metrics)

	groupsRepo := groups.NewRepository(dbpool)
	groupsService := groups.NewService(groupsRepo, auditLogger, refresher)
	groupsHandler := groups.NewHandler(logger, groupsService, authzMiddleware, metrics)

	rolesService := roles.NewService(rolesRepo, auditLogger, refresher)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware, metrics)

	usersService := users.NewService(usersRepo, auditLogger, refresher)
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobsClient, cfg.AuditRetention, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		PermissionsHandler: permissionsHandler,
		GroupsHandler:      groupsHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		JobHandler:         jobHandler,
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
