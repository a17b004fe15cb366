package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/icco/popcorn/lib/browse"
	"github.com/icco/popcorn/lib/config"
	"github.com/icco/popcorn/lib/db"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	movies  []models.Movie
	err     error
	details map[int]models.Movie
	calls   []string
}

func (f *fakeCatalog) list(call string) ([]models.Movie, error) {
	f.calls = append(f.calls, call)
	return f.movies, f.err
}

func (f *fakeCatalog) Popular(context.Context) ([]models.Movie, error) { return f.list("popular") }
func (f *fakeCatalog) ByGenre(context.Context, int) ([]models.Movie, error) {
	return f.list("genre")
}
func (f *fakeCatalog) ByYear(context.Context, int) ([]models.Movie, error) { return f.list("year") }
func (f *fakeCatalog) ByLanguage(context.Context, string) ([]models.Movie, error) {
	return f.list("language")
}
func (f *fakeCatalog) ByTimePeriod(context.Context, string) ([]models.Movie, error) {
	return f.list("period")
}
func (f *fakeCatalog) Search(_ context.Context, q string) ([]models.Movie, error) {
	return f.list("search " + q)
}

func (f *fakeCatalog) Details(_ context.Context, id int) (*models.Movie, error) {
	m, ok := f.details[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &m, nil
}

var (
	batman  = models.Movie{ID: 268, Title: "Batman", ReleaseDate: "1989-06-23", VoteAverage: 7.2, GenreIDs: []int{14, 28}}
	returns = models.Movie{ID: 364, Title: "Batman Returns", ReleaseDate: "1992-06-19", VoteAverage: 6.9}
)

func newTestModel(t *testing.T) (Model, *fakeCatalog, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gormDB, err := db.Open(config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "popcorn.db"),
	}, logger)
	require.NoError(t, err)

	cat := &fakeCatalog{
		movies: []models.Movie{batman, returns},
		details: map[int]models.Movie{
			268: {ID: 268, Title: "Batman", ReleaseDate: "1989-06-23", Genres: []models.Genre{{ID: 14, Name: "Fantasy"}}},
		},
	}
	st := store.New(gormDB, logger)
	m := NewModel(context.Background(), cat, st)
	m = send(t, m, m.fetch(m.filter)())
	return m, cat, st
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// press sends a key and runs the command it returns, feeding our own
// messages back into the model.
func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	return run(t, next.(Model), cmd)
}

func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = run(t, m, c)
		}
	case listMsg, themeMsg, failedMsg, detailsMsg, errorMsg, resultsMsg:
		m = send(t, m, msg)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLoadsPopular(t *testing.T) {
	m, cat, _ := newTestModel(t)

	assert.Equal(t, []string{"popular"}, cat.calls)
	assert.False(t, m.loading)
	assert.Equal(t, "Popular Movies", m.heading)

	out := m.View()
	assert.Contains(t, out, "Batman (1989)")
	assert.Contains(t, out, "Batman Returns (1992)")
}

func TestFetchErrorIsNotEmpty(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = send(t, m, resultsMsg{result: browse.Result{Title: "Popular Movies", Movies: []models.Movie{}}})
	assert.Contains(t, m.View(), "No movies found.")

	m = send(t, m, resultsMsg{result: browse.Result{Title: "Popular Movies", Err: errors.New("status 401")}})
	out := m.View()
	assert.Contains(t, out, "Could not load movies: status 401")
	assert.NotContains(t, out, "No movies found.")
}

func TestSearch(t *testing.T) {
	m, cat, _ := newTestModel(t)

	m = send(t, m, runes("/"))
	require.True(t, m.search.Focused())
	m = send(t, m, runes("batman"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.search.Focused())
	assert.Equal(t, "batman", m.filter.Query)
	assert.True(t, m.loading)

	m = send(t, m, m.fetch(m.filter)())
	assert.Equal(t, `Search results for "batman"`, m.heading)
	assert.Equal(t, "search batman", cat.calls[len(cat.calls)-1])

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.filter.IsZero())
	assert.Empty(t, m.search.Value())
}

func TestToggleWatchlist(t *testing.T) {
	m, _, st := newTestModel(t)
	ctx := context.Background()

	m = press(t, m, runes("w"))
	assert.True(t, st.Contains(ctx, models.SlotWatchlist, 268))
	assert.Equal(t, "Added Batman to watchlist", m.status)
	assert.Contains(t, m.View(), "★")
	assert.Contains(t, m.View(), "Watchlist (1)")

	m = press(t, m, runes("w"))
	assert.False(t, st.Contains(ctx, models.SlotWatchlist, 268))
	assert.Equal(t, "Removed Batman from watchlist", m.status)
}

func TestFavouriteStoresDetails(t *testing.T) {
	m, _, st := newTestModel(t)

	m = press(t, m, runes("f"))
	favs := st.Load(context.Background(), models.SlotFavorites)
	require.Len(t, favs, 1)
	assert.True(t, favs[0].HasDetails())
	assert.Contains(t, m.View(), "♥")

	// Without details the list record is stored as is.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	press(t, m, runes("f"))
	favs = st.Load(context.Background(), models.SlotFavorites)
	require.Len(t, favs, 2)
	assert.Equal(t, returns, favs[1])
}

func TestDetails(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, viewDetails, m.view)
	require.NotNil(t, m.detail)
	assert.Equal(t, "Fantasy", m.detail.Genres[0].Name)
	assert.Contains(t, m.formatDetails(), "Genres: Fantasy")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, viewBrowse, m.view)
	assert.Nil(t, m.detail)
}

func TestListsRemove(t *testing.T) {
	m, _, st := newTestModel(t)
	ctx := context.Background()
	_, err := st.Toggle(ctx, models.SlotWatchlist, returns)
	require.NoError(t, err)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewWatchlist, m.view)
	assert.Contains(t, m.View(), "Batman Returns")

	m = press(t, m, runes("x"))
	assert.Empty(t, st.Load(ctx, models.SlotWatchlist))
	assert.Contains(t, m.View(), "Your watchlist is empty.")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewFavourites, m.view)
	assert.Contains(t, m.View(), "You have no favourite movies yet.")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewBrowse, m.view)
}

func TestThemeToggle(t *testing.T) {
	m, _, st := newTestModel(t)

	m = press(t, m, runes("d"))
	assert.True(t, m.dark)
	assert.True(t, st.DarkMode(context.Background()))

	m = press(t, m, runes("d"))
	assert.False(t, m.dark)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		n, selected, size int
		start, end        int
	}{
		{n: 3, selected: 0, size: 10, start: 0, end: 3},
		{n: 20, selected: 0, size: 5, start: 0, end: 5},
		{n: 20, selected: 10, size: 5, start: 8, end: 13},
		{n: 20, selected: 19, size: 5, start: 15, end: 20},
		{n: 20, selected: 3, size: 0, start: 3, end: 4},
	}

	for _, tt := range tests {
		start, end := window(tt.n, tt.selected, tt.size)
		assert.Equal(t, tt.start, start, "%+v", tt)
		assert.Equal(t, tt.end, end, "%+v", tt)
	}
}
