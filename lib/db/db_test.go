package db

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/icco/popcorn/lib/config"
	"github.com/icco/popcorn/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "popcorn.db")

	gormDB, err := Open(config.DatabaseConfig{Type: "sqlite", Path: path}, slog.Default())
	require.NoError(t, err)

	assert.True(t, gormDB.Migrator().HasTable(&models.Slot{}))

	row := models.Slot{Key: models.SlotWatchlist, Value: "[]"}
	require.NoError(t, gormDB.Create(&row).Error)

	var got models.Slot
	require.NoError(t, gormDB.First(&got, "name = ?", models.SlotWatchlist).Error)
	assert.Equal(t, "[]", got.Value)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Type: "mysql"}, slog.Default())
	assert.Error(t, err)
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Contains(t, buf.String(), "GORM query")
	assert.NotContains(t, buf.String(), "GORM error")

	buf.Reset()
	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM error")
	assert.Contains(t, buf.String(), "boom")
}
