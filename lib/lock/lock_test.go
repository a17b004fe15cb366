package lock

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockExclusive(t *testing.T) {
	fl := NewFileLock(t.TempDir(), slog.Default())
	ctx := context.Background()

	ok, err := fl.TryLock(ctx, "watchlist", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = fl.TryLock(ctx, "watchlist", 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire should time out")

	ok, err = fl.TryLock(ctx, "favorites", 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "different keys do not contend")

	require.NoError(t, fl.Unlock("watchlist"))
	ok, err = fl.TryLock(ctx, "watchlist", 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleLockIsRemoved(t *testing.T) {
	dir := t.TempDir()
	fl := NewFileLock(dir, slog.Default())

	stale := filepath.Join(dir, "watchlist.lock")
	require.NoError(t, os.WriteFile(stale, []byte("1\n1\n"), 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	ok, err := fl.TryLock(context.Background(), "watchlist", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDoSerializes(t *testing.T) {
	fl := NewFileLock(t.TempDir(), slog.Default())

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fl.Do(context.Background(), "watchlist", 5*time.Second, func() error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestDoTimeout(t *testing.T) {
	fl := NewFileLock(t.TempDir(), slog.Default())
	ok, err := fl.TryLock(context.Background(), "favorites", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	err = fl.Do(context.Background(), "favorites", 50*time.Millisecond, func() error { return nil })
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestPathSanitizesKey(t *testing.T) {
	fl := NewFileLock("/tmp/locks", slog.Default())
	assert.Equal(t, "/tmp/locks/__etc_passwd.lock", fl.path("../etc/passwd"))
}
