package store

import (
	"cmp"
	"context"
	"slices"
	"strconv"

	"github.com/icco/popcorn/lib/types"
	"github.com/icco/popcorn/models"
)

// Stats summarizes both lists and the theme flag.
func (s *Store) Stats(ctx context.Context) types.StatsData {
	favorites := s.Load(ctx, models.SlotFavorites)
	watchlist := s.Load(ctx, models.SlotWatchlist)

	stats := types.StatsData{
		TotalFavorites: len(favorites),
		TotalWatchlist: len(watchlist),
		DarkMode:       s.DarkMode(ctx),
	}

	var rows []models.Slot
	if err := s.db.WithContext(ctx).Order("updated_at desc").Limit(1).Find(&rows).Error; err == nil && len(rows) > 0 {
		stats.LastUpdated = rows[0].UpdatedAt
	}

	seen := make(map[int]bool, len(favorites))
	languages := map[string]int{}
	decades := map[string]int{}
	count := func(m models.Movie) {
		if m.OriginalLanguage != "" {
			languages[m.OriginalLanguage]++
		}
		if y, err := strconv.Atoi(m.Year()); err == nil {
			decades[strconv.Itoa(y/10*10)+"s"]++
		}
	}

	for _, m := range favorites {
		seen[m.ID] = true
		count(m)
	}
	for _, m := range watchlist {
		if seen[m.ID] {
			stats.Overlap++
			continue
		}
		count(m)
	}

	stats.LanguageDistribution = distribution(languages)
	stats.DecadeDistribution = distribution(decades)
	return stats
}

// distribution orders buckets by count, then key.
func distribution(m map[string]int) []types.Count {
	out := make([]types.Count, 0, len(m))
	for k, v := range m {
		out = append(out, types.Count{Key: k, Count: v})
	}
	slices.SortFunc(out, func(a, b types.Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}
