package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path  string
	query url.Values
}

// fakeTMDB answers every list endpoint with the same two results and
// records the requests it saw.
type fakeTMDB struct {
	mu       sync.Mutex
	requests []recorded
	status   int
}

func (f *fakeTMDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recorded{path: r.URL.Path, query: r.URL.Query()})
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"status_message":"nope"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/movie/268" {
		fmt.Fprint(w, `{"id":268,"title":"Batman","poster_path":"/batman.jpg","overview":"The Dark Knight of Gotham City",
			"release_date":"1989-06-23","vote_average":7.2,"genres":[{"id":14,"name":"Fantasy"},{"id":28,"name":"Action"}],
			"original_language":"en"}`)
		return
	}
	fmt.Fprint(w, `{"page":1,"results":[
		{"id":268,"title":"Batman","poster_path":"/batman.jpg","release_date":"1989-06-23","vote_average":7.2,"genre_ids":[14,28],"original_language":"en"},
		{"id":364,"title":"Batman Returns","poster_path":"/returns.jpg","release_date":"1992-06-19","vote_average":6.9,"genre_ids":[28],"original_language":"en"}
	]}`)
}

func (f *fakeTMDB) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeTMDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T) (*Client, *fakeTMDB) {
	t.Helper()
	fake := &fakeTMDB{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	clock := func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return NewClient("test-key", slog.Default(), WithBaseURL(srv.URL), WithClock(clock)), fake
}

func TestListEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		call      func(context.Context, *Client) error
		wantPath  string
		wantQuery map[string]string
	}{
		{
			name:     "popular",
			call:     func(ctx context.Context, c *Client) error { _, err := c.Popular(ctx); return err },
			wantPath: "/movie/popular",
		},
		{
			name:      "genre",
			call:      func(ctx context.Context, c *Client) error { _, err := c.ByGenre(ctx, 28); return err },
			wantPath:  "/discover/movie",
			wantQuery: map[string]string{"with_genres": "28"},
		},
		{
			name:      "year",
			call:      func(ctx context.Context, c *Client) error { _, err := c.ByYear(ctx, 2010); return err },
			wantPath:  "/discover/movie",
			wantQuery: map[string]string{"primary_release_year": "2010"},
		},
		{
			name:      "language",
			call:      func(ctx context.Context, c *Client) error { _, err := c.ByLanguage(ctx, "si"); return err },
			wantPath:  "/discover/movie",
			wantQuery: map[string]string{"with_original_language": "si"},
		},
		{
			name:      "search escapes the query",
			call:      func(ctx context.Context, c *Client) error { _, err := c.Search(ctx, "batman & robin"); return err },
			wantPath:  "/search/movie",
			wantQuery: map[string]string{"query": "batman & robin"},
		},
		{
			name:     "new releases",
			call:     func(ctx context.Context, c *Client) error { _, err := c.ByTimePeriod(ctx, PeriodNewReleases); return err },
			wantPath: "/movie/now_playing",
		},
		{
			name:     "upcoming",
			call:     func(ctx context.Context, c *Client) error { _, err := c.ByTimePeriod(ctx, PeriodUpcoming); return err },
			wantPath: "/movie/upcoming",
		},
		{
			name:      "classics",
			call:      func(ctx context.Context, c *Client) error { _, err := c.ByTimePeriod(ctx, PeriodClassics); return err },
			wantPath:  "/discover/movie",
			wantQuery: map[string]string{"primary_release_date.lte": "1989-12-31"},
		},
		{
			name:      "this year",
			call:      func(ctx context.Context, c *Client) error { _, err := c.ByTimePeriod(ctx, PeriodThisYear); return err },
			wantPath:  "/discover/movie",
			wantQuery: map[string]string{"primary_release_year": "2024"},
		},
		{
			name:     "90s",
			call:     func(ctx context.Context, c *Client) error { _, err := c.ByTimePeriod(ctx, Period90s); return err },
			wantPath: "/discover/movie",
			wantQuery: map[string]string{
				"primary_release_date.gte": "1990-01-01",
				"primary_release_date.lte": "1999-12-31",
			},
		},
		{
			name:     "80s",
			call:     func(ctx context.Context, c *Client) error { _, err := c.ByTimePeriod(ctx, Period80s); return err },
			wantPath: "/discover/movie",
			wantQuery: map[string]string{
				"primary_release_date.gte": "1980-01-01",
				"primary_release_date.lte": "1989-12-31",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			require.NoError(t, tt.call(context.Background(), c))

			got := fake.last(t)
			assert.Equal(t, tt.wantPath, got.path)
			assert.Equal(t, "test-key", got.query.Get("api_key"))
			for k, v := range tt.wantQuery {
				assert.Equal(t, v, got.query.Get(k), "query param %s", k)
			}
		})
	}
}

func TestSearchResultsCarryTitles(t *testing.T) {
	c, _ := newTestClient(t)

	movies, err := c.Search(context.Background(), "batman")
	require.NoError(t, err)
	require.NotEmpty(t, movies)
	for _, m := range movies {
		assert.NotEmpty(t, m.Title, "movie %d has no title", m.ID)
	}
}

func TestUnknownTimePeriodSkipsRequest(t *testing.T) {
	c, fake := newTestClient(t)

	movies, err := c.ByTimePeriod(context.Background(), "70s")
	require.NoError(t, err)
	assert.Empty(t, movies)
	assert.NotNil(t, movies)
	assert.Equal(t, 0, fake.count())
}

func TestDetails(t *testing.T) {
	c, fake := newTestClient(t)

	movie, err := c.Details(context.Background(), 268)
	require.NoError(t, err)
	assert.Equal(t, "/movie/268", fake.last(t).path)
	assert.Equal(t, "Batman", movie.Title)
	assert.Equal(t, "en", movie.OriginalLanguage)
	require.Len(t, movie.Genres, 2)
	assert.Equal(t, "Fantasy", movie.Genres[0].Name)
	assert.True(t, movie.HasDetails())
}

func TestUpstreamErrors(t *testing.T) {
	c, fake := newTestClient(t)
	fake.mu.Lock()
	fake.status = http.StatusUnauthorized
	fake.mu.Unlock()

	_, err := c.Popular(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Contains(t, err.Error(), "401")

	_, err = c.Details(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.False(t, errors.Is(err, ErrNotFound))

	fake.mu.Lock()
	fake.status = http.StatusNotFound
	fake.mu.Unlock()

	_, err = c.Details(context.Background(), 999999)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTransportErrorIsRedacted(t *testing.T) {
	c := NewClient("secret-key", slog.Default(), WithBaseURL("http://127.0.0.1:1"), WithTimeout(time.Second))

	_, err := c.Popular(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestPosterURL(t *testing.T) {
	c := NewClient("k", slog.Default())
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/abc.jpg", c.PosterURL("/abc.jpg"))
	assert.Equal(t, "https://image.tmdb.org/t/p/w500", c.PosterURL(""))
}
