package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "POPCORN_HOST", "DATABASE_TYPE", "DB_PATH", "DATABASE_URL",
		"TMDB_API_KEY", "VITE_TMDB_API_KEY", "TMDB_BASE_URL", "TMDB_TIMEOUT",
		"POPCORN_LOG_LEVEL", "POPCORN_LOCK_DIR",
	} {
		t.Setenv(k, "")
	}
	// Keep godotenv away from any .env in the package directory.
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "popcorn.db", cfg.Database.Path)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "popcorn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
tmdb:
  api_key: from-file
  timeout: 3s
logging:
  level: debug
`), 0o600))

	t.Setenv("TMDB_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.TMDB.APIKey)
	assert.Equal(t, 3*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadLegacyAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_TMDB_API_KEY", "legacy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.TMDB.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("TMDB_API_KEY"))
	require.NoError(t, os.WriteFile(".env", []byte("TMDB_API_KEY=dotenv-key\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TMDB_API_KEY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.TMDB.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"unknown db", func(c *Config) { c.Database.Type = "mysql" }, true},
		{"postgres without dsn", func(c *Config) { c.Database.Type = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Database.Type = "postgres"
			c.Database.DSN = "postgres://localhost/popcorn"
		}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}

func TestWatchReloads(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "popcorn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, cfg, slog.Default(), func(_, next *Config) {
			reloaded <- next
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	select {
	case next := <-reloaded:
		assert.Equal(t, "debug", next.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}
