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

	"github.com/icco/popcorn/lib/app"
	"github.com/icco/popcorn/lib/config"
)

const defaultConfigPath = "popcorn.yaml"

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	logger := slog.Default()

	configPath := os.Getenv("POPCORN_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if l, err := config.ParseLevel(cfg.Logging.Level); err == nil {
		level.Set(l)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize app", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Failed to close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)

	go func() {
		err := config.Watch(ctx, configPath, cfg, logger, func(oldConfig, newConfig *config.Config) {
			if oldConfig.Logging.Level == newConfig.Logging.Level {
				return
			}
			if l, err := config.ParseLevel(newConfig.Logging.Level); err == nil {
				level.Set(l)
				logger.Info("Log level changed", slog.String("level", newConfig.Logging.Level))
			}
		})
		if err != nil {
			logger.Warn("Config reload disabled", slog.Any("error", err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", slog.Any("error", err))
		}
	}()

	logger.Info("Starting server", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
