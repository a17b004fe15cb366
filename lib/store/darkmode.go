package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/icco/popcorn/models"
)

// DarkMode returns the persisted theme flag. Absent or unreadable values
// read as false.
func (s *Store) DarkMode(ctx context.Context) bool {
	raw, found, err := s.read(ctx, models.SlotDarkMode)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load dark mode", slog.Any("error", err))
		return false
	}
	if !found {
		return false
	}

	var on bool
	if err := json.Unmarshal([]byte(raw), &on); err != nil {
		s.logger.WarnContext(ctx, "Unreadable dark mode value", slog.String("value", raw))
		return false
	}
	return on
}

// SetDarkMode persists the flag and notifies subscribers.
func (s *Store) SetDarkMode(ctx context.Context, on bool) error {
	var seq uint64
	err := s.exclusive(ctx, models.SlotDarkMode, func() error {
		if err := s.save(ctx, models.SlotDarkMode, on); err != nil {
			return err
		}
		seq = s.stamp()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Theme changed", slog.String("dark_mode", strconv.FormatBool(on)))
	s.publish(Change{Seq: seq, Slot: models.SlotDarkMode, DarkMode: on})
	return nil
}

// ToggleDarkMode flips the flag and returns the new value.
func (s *Store) ToggleDarkMode(ctx context.Context) (bool, error) {
	var (
		next bool
		seq  uint64
	)
	err := s.exclusive(ctx, models.SlotDarkMode, func() error {
		next = !s.DarkMode(ctx)
		if err := s.save(ctx, models.SlotDarkMode, next); err != nil {
			return err
		}
		seq = s.stamp()
		return nil
	})
	if err != nil {
		return false, err
	}

	s.publish(Change{Seq: seq, Slot: models.SlotDarkMode, DarkMode: next})
	return next, nil
}
