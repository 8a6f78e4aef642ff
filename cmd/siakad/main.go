package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siakad-core/siakad-core/internal/academics"
	"github.com/siakad-core/siakad-core/internal/app"
	"github.com/siakad-core/siakad-core/internal/auth"
	"github.com/siakad-core/siakad-core/internal/platform/cache"
	"github.com/siakad-core/siakad-core/internal/platform/db"
	"github.com/siakad-core/siakad-core/internal/positions"
	"github.com/siakad-core/siakad-core/internal/rbac"
	"github.com/siakad-core/siakad-core/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The throttle fails open, so a cold Redis only costs rate limiting.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec := auth.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, nil)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, codec, logger, nil)
	throttle := auth.NewThrottle(redisClient, cfg.LoginMaxAttempts, cfg.LoginAttemptWindow, logger)
	authHandler := auth.NewHandler(logger, authService, throttle, cfg.RefreshTokenTTL, cfg.IsProduction())
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo, logger)
	if err := rbacService.EnsureCoreFeatures(ctx); err != nil {
		logger.Error("seed feature catalog", slog.Any("error", err))
		os.Exit(1)
	}
	rbacGuard := rbac.Middleware{Service: rbacService, Logger: logger}
	rbacHandler := rbac.NewHandler(logger, rbacService, rbacGuard)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rbacService, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacGuard)

	academicsRepo := academics.NewRepository(pool)
	positionsRepo := positions.NewRepository(pool)
	positionsService := positions.NewService(positionsRepo, academicsRepo, logger)
	positionsHandler := positions.NewHandler(logger, positionsService, rbacGuard)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		RBACHandler:      rbacHandler,
		UsersHandler:     usersHandler,
		PositionsHandler: positionsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
