package browse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/popcorn/models"
)

// Source is the subset of the TMDB client the browse page needs.
type Source interface {
	Popular(ctx context.Context) ([]models.Movie, error)
	ByGenre(ctx context.Context, genreID int) ([]models.Movie, error)
	ByYear(ctx context.Context, year int) ([]models.Movie, error)
	ByLanguage(ctx context.Context, language string) ([]models.Movie, error)
	ByTimePeriod(ctx context.Context, period string) ([]models.Movie, error)
	Search(ctx context.Context, query string) ([]models.Movie, error)
}

// Result separates a failed request from a request that found nothing.
type Result struct {
	Title  string
	Movies []models.Movie
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Empty reports a successful request with no movies.
func (r Result) Empty() bool {
	return r.Err == nil && len(r.Movies) == 0
}

// Fetch issues the single request f selects: search first, then the active
// dropdown, then popular movies.
func Fetch(ctx context.Context, src Source, f Filter) Result {
	var (
		res = Result{Title: f.Title()}
		err error
	)

	switch {
	case f.Query != "":
		res.Movies, err = src.Search(ctx, f.Query)
	case f.Genre != 0:
		res.Movies, err = src.ByGenre(ctx, f.Genre)
	case f.TimePeriod != "":
		res.Movies, err = src.ByTimePeriod(ctx, f.TimePeriod)
	case f.Year != 0:
		res.Movies, err = src.ByYear(ctx, f.Year)
	case f.Language != "":
		res.Movies, err = src.ByLanguage(ctx, f.Language)
	default:
		res.Movies, err = src.Popular(ctx)
	}

	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch movies",
			slog.String("title", res.Title),
			slog.Any("error", err))
		return Result{Title: res.Title, Movies: []models.Movie{}, Err: err}
	}
	if res.Movies == nil {
		res.Movies = []models.Movie{}
	}
	return res
}

// Title is the heading shown above the grid for f.
func (f Filter) Title() string {
	switch {
	case f.Query != "":
		return fmt.Sprintf("Search results for %q", f.Query)
	case f.Genre != 0:
		return GenreName(f.Genre) + " Movies"
	case f.TimePeriod != "":
		return label(TimePeriods, f.TimePeriod)
	case f.Year != 0:
		return fmt.Sprintf("Movies from %d", f.Year)
	case f.Language != "":
		return LanguageName(f.Language) + " Movies"
	}
	return "Popular Movies"
}
