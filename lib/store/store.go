// Package store keeps the favourites and watchlist slots and the dark mode
// flag in one process-wide key-value store backed by gorm.
//
// Every page, API handler and the terminal client read and write through a
// single *Store, and every successful write is published to subscribers so
// that all views observe the same value.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/icco/popcorn/lib/lock"
	"github.com/icco/popcorn/lib/validation"
	"github.com/icco/popcorn/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownSlot is returned when a slot name is not a movie list.
var ErrUnknownSlot = errors.New("unknown slot")

// Slots lists the movie list slots in display order.
var Slots = []string{models.SlotFavorites, models.SlotWatchlist}

// Change describes one successful write. Exactly one of Movies or DarkMode
// is meaningful, depending on Slot. Changes from concurrent writers can
// reach subscribers out of order; Seq follows commit order within the
// process, so the highest Seq seen for a slot is its current value.
type Change struct {
	ID       string         `json:"id"`
	Seq      uint64         `json:"seq"`
	Slot     string         `json:"slot"`
	Movies   []models.Movie `json:"movies,omitempty"`
	DarkMode bool           `json:"darkMode"`
	At       time.Time      `json:"at"`
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	flock       *lock.FileLock
	lockTimeout time.Duration

	mu  sync.Mutex
	seq uint64

	subsMu  sync.RWMutex
	subs    map[int]func(Change)
	nextSub int
}

type Option func(*Store)

// WithFileLock serializes writes with other processes using the same lock
// directory, such as the terminal client next to the server.
func WithFileLock(fl *lock.FileLock, timeout time.Duration) Option {
	return func(s *Store) {
		s.flock = fl
		s.lockTimeout = timeout
	}
}

func New(db *gorm.DB, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: logger,
		subs:   make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsListSlot reports whether slot names a movie list.
func IsListSlot(slot string) bool {
	return slot == models.SlotFavorites || slot == models.SlotWatchlist
}

// Load returns the movies in slot. It never fails: an absent slot, a
// database error or unreadable JSON all yield an empty list.
func (s *Store) Load(ctx context.Context, slot string) []models.Movie {
	if !IsListSlot(slot) {
		s.logger.WarnContext(ctx, "Load of unknown slot", slog.String("slot", slot))
		return []models.Movie{}
	}

	movies, err := s.load(ctx, slot)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load slot", slog.String("slot", slot), slog.Any("error", err))
		return []models.Movie{}
	}
	return movies
}

// Contains reports whether a movie with id is in slot.
func (s *Store) Contains(ctx context.Context, slot string, id int) bool {
	return indexOf(s.Load(ctx, slot), id) >= 0
}

// Toggle removes the movie with the same id from slot if present, otherwise
// appends movie as given. The new list is persisted before it is returned.
func (s *Store) Toggle(ctx context.Context, slot string, movie models.Movie) ([]models.Movie, error) {
	return s.mutate(ctx, slot, func(movies []models.Movie) ([]models.Movie, bool) {
		if i := indexOf(movies, movie.ID); i >= 0 {
			return append(movies[:i:i], movies[i+1:]...), true
		}
		return append(movies, movie), true
	})
}

// Add appends movie unless its id is already in slot.
func (s *Store) Add(ctx context.Context, slot string, movie models.Movie) ([]models.Movie, error) {
	return s.mutate(ctx, slot, func(movies []models.Movie) ([]models.Movie, bool) {
		if indexOf(movies, movie.ID) >= 0 {
			return movies, false
		}
		return append(movies, movie), true
	})
}

// Remove drops every movie with id from slot. Removing an absent id returns
// the list unchanged and does not write.
func (s *Store) Remove(ctx context.Context, slot string, id int) ([]models.Movie, error) {
	return s.mutate(ctx, slot, func(movies []models.Movie) ([]models.Movie, bool) {
		kept := make([]models.Movie, 0, len(movies))
		for _, m := range movies {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		return kept, len(kept) != len(movies)
	})
}

// Subscribe registers fn for every Change. Callbacks run synchronously on
// the writing goroutine after the write is committed; keep them short.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(c Change) {
	c.ID = uuid.NewString()
	c.At = time.Now()

	s.subsMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) mutate(ctx context.Context, slot string, apply func([]models.Movie) ([]models.Movie, bool)) ([]models.Movie, error) {
	if !IsListSlot(slot) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	var (
		result  []models.Movie
		changed bool
		seq     uint64
	)
	err := s.exclusive(ctx, slot, func() error {
		current, err := s.load(ctx, slot)
		if err != nil {
			if !errors.Is(err, errCorrupt) {
				return err
			}
			// Fail open like Load: an unreadable list is replaced.
			s.logger.WarnContext(ctx, "Overwriting unreadable slot", slog.String("slot", slot), slog.Any("error", err))
			current = []models.Movie{}
		}

		result, changed = apply(current)
		if !changed {
			return nil
		}
		if err := s.save(ctx, slot, result); err != nil {
			return err
		}
		seq = s.stamp()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = []models.Movie{}
	}
	if changed {
		s.publish(Change{Seq: seq, Slot: slot, Movies: result})
	}
	return result, nil
}

// exclusive runs fn under the in-process mutex and, when configured, the
// cross-process file lock for key.
func (s *Store) exclusive(ctx context.Context, key string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flock == nil {
		return fn()
	}
	return s.flock.Do(ctx, key, s.lockTimeout, fn)
}

// stamp numbers a committed write. Callers hold s.mu.
func (s *Store) stamp() uint64 {
	s.seq++
	return s.seq
}

var errCorrupt = errors.New("corrupt slot")

// load distinguishes database failures from unreadable content, which is
// reported as errCorrupt.
func (s *Store) load(ctx context.Context, slot string) ([]models.Movie, error) {
	raw, found, err := s.read(ctx, slot)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.Movie{}, nil
	}

	movies, err := validation.ValidateAndParseSlot([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	return movies, nil
}

func (s *Store) read(ctx context.Context, key string) (string, bool, error) {
	var row models.Slot
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode slot %s: %w", key, err)
	}

	row := models.Slot{Key: key, Value: string(data), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

func indexOf(movies []models.Movie, id int) int {
	for i, m := range movies {
		if m.ID == id {
			return i
		}
	}
	return -1
}
