package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/popcorn/models"
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	ctx := context.Background()

	if db.Dialector.Name() == "sqlite" {
		enableSQLiteOptimizations(ctx, db, logger)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.Slot{}); err != nil {
		return fmt.Errorf("failed to auto-migrate slots: %w", err)
	}

	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations. Failures
// are logged and ignored; in-memory databases reject some of these.
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		} else {
			logger.Debug("Executed pragma", slog.String("pragma", pragma))
		}
	}
}
