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

	"github.com/meridian-bank/meridian-web/internal/app"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/platform/cache"
	"github.com/meridian-bank/meridian-web/internal/rbac"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if err := rbac.Validate(); err != nil {
		slog.Default().Error("role registry", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable at startup", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	api := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	web, err := app.Build(cfg, logger, redisClient, api)
	if err != nil {
		logger.Error("build app", slog.Any("error", err))
		os.Exit(1)
	}

	if web.Feed != nil {
		if err := web.Feed.Start(ctx); err != nil {
			logger.Error("start metrics poller", slog.Any("error", err))
			os.Exit(1)
		}
		defer web.Feed.Stop()
	} else {
		logger.Info("no service token configured, dashboard metrics are fetched per request")
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      web.Handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", api.BaseURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
