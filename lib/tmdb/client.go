package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/icco/popcorn/models"
)

// ErrUpstream is wrapped by every error the client returns for a failed
// request: transport failure, non-2xx status or an undecodable body.
var ErrUpstream = errors.New("upstream request failed")

// ErrNotFound is wrapped alongside ErrUpstream when TMDB answers 404.
var ErrNotFound = errors.New("not found")

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	DefaultImageBase = "https://image.tmdb.org/t/p/w500"
)

// Time period buckets understood by ByTimePeriod.
const (
	PeriodNewReleases = "new_releases"
	PeriodUpcoming    = "upcoming"
	PeriodClassics    = "classics"
	PeriodThisYear    = "this_year"
	Period90s         = "90s"
	Period80s         = "80s"
)

type Client struct {
	apiKey     string
	baseURL    string
	imageBase  string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithImageBase(u string) Option {
	return func(c *Client) { c.imageBase = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithClock replaces time.Now, which decides the "this_year" bucket.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

type listResponse struct {
	Page    int            `json:"page"`
	Results []models.Movie `json:"results"`
}

func NewClient(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		imageBase:  DefaultImageBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Popular returns the first page of popular movies.
func (c *Client) Popular(ctx context.Context) ([]models.Movie, error) {
	return c.list(ctx, "popular movies", "/movie/popular", nil)
}

func (c *Client) ByGenre(ctx context.Context, genreID int) ([]models.Movie, error) {
	return c.list(ctx, "movies by genre", "/discover/movie", url.Values{
		"with_genres": {strconv.Itoa(genreID)},
	})
}

func (c *Client) ByYear(ctx context.Context, year int) ([]models.Movie, error) {
	return c.list(ctx, "movies by year", "/discover/movie", url.Values{
		"primary_release_year": {strconv.Itoa(year)},
	})
}

func (c *Client) ByLanguage(ctx context.Context, language string) ([]models.Movie, error) {
	return c.list(ctx, "movies by language", "/discover/movie", url.Values{
		"with_original_language": {language},
	})
}

// ByTimePeriod maps a period bucket onto the matching endpoint. An unknown
// period yields an empty list without touching the network.
func (c *Client) ByTimePeriod(ctx context.Context, period string) ([]models.Movie, error) {
	var (
		path   = "/discover/movie"
		params url.Values
	)

	switch period {
	case PeriodNewReleases:
		path = "/movie/now_playing"
	case PeriodUpcoming:
		path = "/movie/upcoming"
	case PeriodClassics:
		params = url.Values{"primary_release_date.lte": {"1989-12-31"}}
	case PeriodThisYear:
		params = url.Values{"primary_release_year": {strconv.Itoa(c.now().Year())}}
	case Period90s:
		params = url.Values{
			"primary_release_date.gte": {"1990-01-01"},
			"primary_release_date.lte": {"1999-12-31"},
		}
	case Period80s:
		params = url.Values{
			"primary_release_date.gte": {"1980-01-01"},
			"primary_release_date.lte": {"1989-12-31"},
		}
	default:
		return []models.Movie{}, nil
	}

	return c.list(ctx, "movies by time period", path, params)
}

func (c *Client) Search(ctx context.Context, query string) ([]models.Movie, error) {
	return c.list(ctx, "search movies", "/search/movie", url.Values{
		"query": {query},
	})
}

// Details fetches the full record for one movie, including genres.
func (c *Client) Details(ctx context.Context, movieID int) (*models.Movie, error) {
	var movie models.Movie
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", movieID), nil, &movie); err != nil {
		return nil, fmt.Errorf("movie details %d: %w", movieID, err)
	}
	return &movie, nil
}

// PosterURL joins the image CDN base with a poster path fragment. An empty
// path is passed through as-is.
func (c *Client) PosterURL(posterPath string) string {
	return c.imageBase + posterPath
}

func (c *Client) list(ctx context.Context, op, path string, params url.Values) ([]models.Movie, error) {
	var result listResponse
	if err := c.get(ctx, path, params, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if result.Results == nil {
		return []models.Movie{}, nil
	}
	return result.Results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	c.logger.DebugContext(ctx, "TMDB request", slog.String("path", path), slog.String("query", q.Encode()))
	q.Set("api_key", c.apiKey)

	reqURL := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUpstream, redact(err.Error(), c.apiKey))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status %d: %w", ErrUpstream, resp.StatusCode, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}

	return nil
}

// redact strips the api key from transport errors, which embed the URL.
func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "REDACTED")
}
