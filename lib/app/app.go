// Package app assembles the database, store, TMDB client and change hub
// from a Config. The server and the command line tools share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/icco/popcorn/handlers"
	"github.com/icco/popcorn/lib/config"
	"github.com/icco/popcorn/lib/db"
	"github.com/icco/popcorn/lib/health"
	"github.com/icco/popcorn/lib/lock"
	"github.com/icco/popcorn/lib/notify"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/lib/tmdb"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *store.Store
	Movies *tmdb.Client
	Hub    *notify.Hub

	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	gormDB, err := db.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	var opts []store.Option
	if cfg.Store.LockDir != "" {
		opts = append(opts, store.WithFileLock(lock.NewFileLock(cfg.Store.LockDir, logger), cfg.Store.LockTimeout))
	}

	if cfg.TMDB.APIKey == "" {
		logger.Warn("TMDB_API_KEY is not set, movie requests will fail")
	}

	return &App{
		Config: cfg,
		DB:     gormDB,
		Store:  store.New(gormDB, logger, opts...),
		Movies: tmdb.NewClient(cfg.TMDB.APIKey, logger,
			tmdb.WithBaseURL(cfg.TMDB.BaseURL),
			tmdb.WithImageBase(cfg.TMDB.ImageBase),
			tmdb.WithTimeout(cfg.TMDB.Timeout),
		),
		Hub:    notify.NewHub(logger),
		logger: logger,
	}, nil
}

// Start runs the hub and forwards every store change to it until ctx is
// done.
func (a *App) Start(ctx context.Context) {
	go a.Hub.Run(ctx)

	unsubscribe := a.Store.Subscribe(func(c store.Change) {
		if err := a.Hub.Broadcast("change", c); err != nil {
			a.logger.Error("Failed to broadcast change", slog.String("slot", c.Slot), slog.Any("error", err))
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

func (a *App) Router() *chi.Mux {
	return handlers.NewRouter(handlers.Deps{
		DB:     a.DB,
		Store:  a.Store,
		Movies: a.Movies,
		WS:     a.Hub.ServeWS,
		Probes: []health.Probe{{Name: "tmdb", Check: a.checkTMDB}},
	})
}

func (a *App) checkTMDB(context.Context) error {
	if a.Config.TMDB.APIKey == "" {
		return errors.New("api key not configured")
	}
	return nil
}

func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}
