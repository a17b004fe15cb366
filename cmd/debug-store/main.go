// Command debug-store prints what the list store holds and flags rows that
// the server would silently read as empty.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/icco/popcorn/lib/config"
	"github.com/icco/popcorn/lib/db"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/lib/validation"
	"github.com/icco/popcorn/models"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	logger := slog.Default()
	logger.Info("Starting store debug - checking slot content")

	cfg, err := config.Load(os.Getenv("POPCORN_CONFIG"))
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Connecting to database", slog.String("type", cfg.Database.Type), slog.String("path", cfg.Database.Path))
	gormDB, err := db.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	st := store.New(gormDB, logger)

	logger.Info("=== SLOT OVERVIEW ===")

	var rows []models.Slot
	if err := gormDB.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		logger.Error("Failed to list slots", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Slots in database", slog.Int("count", len(rows)))

	unreadable := 0
	for _, row := range rows {
		attrs := []any{
			slog.String("slot", row.Key),
			slog.Int("bytes", len(row.Value)),
			slog.Time("updated_at", row.UpdatedAt),
		}
		if store.IsListSlot(row.Key) {
			if err := validation.ValidateSlot([]byte(row.Value)); err != nil {
				unreadable++
				attrs = append(attrs, slog.Any("error", err))
				logger.Warn("Slot is unreadable and loads as empty", attrs...)
				continue
			}
		}
		logger.Info("Slot", attrs...)
	}

	for _, slot := range store.Slots {
		logger.Info("=== " + slot + " ===")

		movies := st.Load(ctx, slot)
		seen := make(map[int]int, len(movies))
		partial := 0
		for _, m := range movies {
			seen[m.ID]++
			if !m.HasDetails() {
				partial++
			}
			logger.Info("Entry",
				slog.Int("id", m.ID),
				slog.String("title", m.Title),
				slog.String("release_date", m.ReleaseDate),
				slog.Bool("has_details", m.HasDetails()))
		}

		for id, n := range seen {
			if n > 1 {
				logger.Warn("Duplicate entry", slog.String("slot", slot), slog.Int("id", id), slog.Int("count", n))
			}
		}
		logger.Info("Slot summary",
			slog.String("slot", slot),
			slog.Int("entries", len(movies)),
			slog.Int("without_details", partial))
	}

	logger.Info("=== STATS ===")
	stats := st.Stats(ctx)
	logger.Info("Stats",
		slog.Int("favorites", stats.TotalFavorites),
		slog.Int("watchlist", stats.TotalWatchlist),
		slog.Int("in_both", stats.Overlap),
		slog.Bool("dark_mode", stats.DarkMode),
		slog.Any("languages", stats.LanguageDistribution),
		slog.Any("decades", stats.DecadeDistribution))

	logger.Info("=== DIAGNOSIS ===")
	switch {
	case len(rows) == 0:
		logger.Info("ISSUE: The store is empty")
		logger.Info("SOLUTION: Nothing has been saved yet; add a movie from the browse page")
	case unreadable > 0:
		logger.Info("ISSUE: Some slots hold JSON that does not match the movie list shape", slog.Int("slots", unreadable))
		logger.Info("SOLUTION: The next write to those slots replaces them; export the raw value first if it matters")
	default:
		logger.Info("SUCCESS: Every slot is readable")
	}
}
