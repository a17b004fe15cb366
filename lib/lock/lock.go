package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTimeout is returned by Do when the lock could not be acquired in time.
var ErrTimeout = errors.New("lock timeout")

const retryInterval = 25 * time.Millisecond

// FileLock serializes work across processes that share a lock directory.
type FileLock struct {
	dir    string
	logger *slog.Logger
}

// NewFileLock creates a lock rooted at dir. An empty dir uses a folder in
// the system temp directory.
func NewFileLock(dir string, logger *slog.Logger) *FileLock {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "popcorn-locks")
	}
	return &FileLock{dir: dir, logger: logger}
}

// TryLock attempts to acquire the lock for key until timeout elapses.
func (fl *FileLock) TryLock(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	lockFile := fl.path(key)

	if err := os.MkdirAll(fl.dir, 0750); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// #nosec G304 - lockFile is built from a sanitized key in path
		file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			if !os.IsExist(err) {
				return false, fmt.Errorf("failed to create lock file: %w", err)
			}
			if fl.isStale(lockFile, timeout*2) {
				fl.logger.Warn("Removing stale lock file", slog.String("file", lockFile))
				if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
					fl.logger.Error("Failed to remove stale lock file", slog.String("file", lockFile), slog.Any("error", err))
				}
				continue
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryInterval):
				continue
			}
		}

		_, werr := fmt.Fprintf(file, "%d\n%d\n", time.Now().Unix(), os.Getpid())
		cerr := file.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(lockFile)
			return false, fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
		}

		fl.logger.Debug("Acquired lock", slog.String("key", key))
		return true, nil
	}

	return false, nil
}

// Unlock releases the lock for key. Releasing a lock that is not held is
// not an error.
func (fl *FileLock) Unlock(key string) error {
	if err := os.Remove(fl.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	fl.logger.Debug("Released lock", slog.String("key", key))
	return nil
}

// Do runs fn while holding the lock for key.
func (fl *FileLock) Do(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	ok, err := fl.TryLock(ctx, key, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimeout, key)
	}
	defer func() {
		if err := fl.Unlock(key); err != nil {
			fl.logger.Error("Failed to release lock", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn()
}

func (fl *FileLock) path(key string) string {
	key = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Clean(filepath.Join(fl.dir, key+".lock"))
}

func (fl *FileLock) isStale(lockFile string, staleAfter time.Duration) bool {
	info, err := os.Stat(lockFile)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > staleAfter
}
