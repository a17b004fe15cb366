// Command check-endpoints boots the router in-process against the
// configured TMDB API and a scratch database, then exercises every route
// and logs what came back.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/icco/popcorn/lib/app"
	"github.com/icco/popcorn/lib/config"
	"github.com/icco/popcorn/lib/notify"
)

// sampleMovieID is a stable TMDB id used for detail checks.
const sampleMovieID = "550"

type check struct {
	name   string
	method string
	path   string
	form   url.Values
	body   string
	want   []int
}

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	logger := slog.Default()
	logger.Info("Starting endpoint testing")

	cfg, err := config.Load(os.Getenv("POPCORN_CONFIG"))
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		return 1
	}
	if cfg.TMDB.APIKey == "" {
		logger.Error("TMDB_API_KEY environment variable is required")
		return 1
	}

	scratch, err := os.MkdirTemp("", "popcorn-check-")
	if err != nil {
		logger.Error("Failed to create scratch directory", slog.Any("error", err))
		return 1
	}
	defer os.RemoveAll(scratch)

	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(scratch, "check.db")
	cfg.Store.LockDir = ""

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize app", slog.Any("error", err))
		return 1
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	r := a.Router()
	failures := testEndpoints(r, logger)
	if !testChangeFeed(r, logger) {
		failures++
	}
	if failures > 0 {
		logger.Error("=== ENDPOINT TESTING FAILED ===", slog.Int("failures", failures))
		return 1
	}
	logger.Info("=== ENDPOINT TESTING COMPLETED ===")
	return 0
}

// testChangeFeed connects to /ws and expects a change message after a
// theme update.
func testChangeFeed(r *chi.Mux, logger *slog.Logger) bool {
	logger.Info("Test", slog.String("name", "Change feed"))

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		logger.Error("Websocket dial failed", slog.Any("error", err))
		return false
	}
	defer conn.Close()

	// The hub registers clients asynchronously, so retry the write until
	// a message arrives.
	for attempt := 1; attempt <= 5; attempt++ {
		req := httptest.NewRequest("PUT", "/api/theme", strings.NewReader(`{"darkMode":true}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(httptest.NewRecorder(), req)

		conn.SetReadDeadline(time.Now().Add(time.Second))
		var msg notify.Message
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Debug("No change message yet", slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}
		logger.Info("Response", slog.String("path", "/ws"), slog.String("type", msg.Type), slog.String("id", msg.ID))
		if msg.Type != "change" {
			logger.Error("Unexpected message type", slog.String("type", msg.Type))
			return false
		}
		return true
	}

	logger.Error("No change message received")
	return false
}

func testEndpoints(r *chi.Mux, logger *slog.Logger) int {
	logger.Info("=== TESTING ENDPOINTS ===")

	movie := `{"id":` + sampleMovieID + `,"title":"Fight Club"}`
	checks := []check{
		{name: "Home page", method: "GET", path: "/", want: []int{200}},
		{name: "Search", method: "GET", path: "/?q=batman", want: []int{200}},
		{name: "Genre filter", method: "GET", path: "/?genre=28", want: []int{200}},
		{name: "Time period filter", method: "GET", path: "/?timePeriod=upcoming", want: []int{200}},
		{name: "Year filter", method: "GET", path: "/?year=2010", want: []int{200}},
		{name: "Language filter", method: "GET", path: "/?language=si", want: []int{200}},
		{name: "Invalid filter", method: "GET", path: "/?year=abc", want: []int{400}},
		{name: "Movie detail", method: "GET", path: "/movie/" + sampleMovieID, want: []int{200}},
		{name: "Unknown movie", method: "GET", path: "/movie/999999999", want: []int{404}},
		{name: "Watchlist toggle", method: "POST", path: "/watchlist/toggle", form: url.Values{"movie": {movie}}, want: []int{303}},
		{name: "Watchlist page", method: "GET", path: "/watchlist", want: []int{200}},
		{name: "Favourite from watchlist", method: "POST", path: "/watchlist/" + sampleMovieID + "/favourite", want: []int{303}},
		{name: "Favourites page", method: "GET", path: "/favourites", want: []int{200}},
		{name: "Favourite toggle", method: "POST", path: "/movie/" + sampleMovieID + "/favourite", want: []int{303}},
		{name: "Watchlist remove", method: "POST", path: "/watchlist/" + sampleMovieID + "/remove", want: []int{303}},
		{name: "Theme toggle", method: "POST", path: "/theme/toggle", want: []int{303}},
		{name: "Health", method: "GET", path: "/health", want: []int{200}},
		{name: "API movies", method: "GET", path: "/api/movies?q=batman", want: []int{200}},
		{name: "API movie", method: "GET", path: "/api/movies/" + sampleMovieID, want: []int{200}},
		{name: "API toggle", method: "POST", path: "/api/lists/favorites", body: movie, want: []int{200}},
		{name: "API contains", method: "GET", path: "/api/lists/favorites/" + sampleMovieID, want: []int{200}},
		{name: "API remove", method: "DELETE", path: "/api/lists/favorites/" + sampleMovieID, want: []int{200}},
		{name: "API unknown slot", method: "GET", path: "/api/lists/recent", want: []int{404}},
		{name: "API theme", method: "PUT", path: "/api/theme", body: `{"darkMode":false}`, want: []int{200}},
		{name: "API stats", method: "GET", path: "/api/stats", want: []int{200}},
	}

	failures := 0
	for i, c := range checks {
		logger.Info("Test", slog.Int("n", i+1), slog.String("name", c.name))
		if !runCheck(r, c, logger) {
			failures++
		}
	}
	return failures
}

func runCheck(r *chi.Mux, c check, logger *slog.Logger) bool {
	var req *http.Request
	switch {
	case c.form != nil:
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case c.body != "":
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	default:
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	body := w.Body.String()
	logger.Info("Response",
		slog.String("path", c.path),
		slog.Int("status", w.Code),
		slog.String("content_type", w.Header().Get("Content-Type")),
		slog.Int("body_length", len(body)))

	ok := false
	for _, want := range c.want {
		if w.Code == want {
			ok = true
		}
	}
	if !ok {
		logger.Error("Unexpected status code",
			slog.Int("status", w.Code),
			slog.Any("want", c.want),
			slog.String("body_preview", body[:min(300, len(body))]))
	}

	if strings.Contains(body, "template:") || strings.Contains(body, "error executing template") {
		logger.Error("Template error detected", slog.String("body_preview", body[:min(500, len(body))]))
		ok = false
	}

	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && !json.Valid(w.Body.Bytes()) {
		logger.Error("Invalid JSON response", slog.String("body_preview", body[:min(300, len(body))]))
		ok = false
	}
	return ok
}
