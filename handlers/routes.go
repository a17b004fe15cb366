package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/icco/popcorn/lib/health"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/models"
	"gorm.io/gorm"
)

// Deps are the collaborators every route shares.
type Deps struct {
	DB     *gorm.DB
	Store  *store.Store
	Movies MovieSource
	// WS serves the change feed. Nil disables /ws.
	WS     http.HandlerFunc
	Probes []health.Probe
	Now    func() time.Time
}

// NewRouter wires pages, the JSON API, the change feed and health.
func NewRouter(d Deps) *chi.Mux {
	if d.Now == nil {
		d.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", HandleHome(d.Store, d.Movies, d.Now))
	r.Get("/movie/{movieID}", HandleMovie(d.Store, d.Movies))
	r.Post("/movie/{movieID}/favourite", HandleFavouriteToggle(d.Store, d.Movies))
	r.Get("/favourites", HandleFavourites(d.Store, d.Movies))
	r.Post("/favourites/{movieID}/remove", HandleRemove(d.Store, models.SlotFavorites, "/favourites"))
	r.Get("/watchlist", HandleWatchlist(d.Store, d.Movies))
	r.Post("/watchlist/toggle", HandleWatchlistToggle(d.Store))
	r.Post("/watchlist/{movieID}/remove", HandleRemove(d.Store, models.SlotWatchlist, "/watchlist"))
	r.Post("/watchlist/{movieID}/favourite", HandleWatchlistFavourite(d.Store))
	r.Post("/theme/toggle", HandleThemeToggle(d.Store))

	if d.WS != nil {
		r.Get("/ws", d.WS)
	}
	r.Get("/health", health.Check(d.DB, d.Probes...))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Cache-Control", "no-store"))

		r.Get("/movies", APIMovies(d.Movies))
		r.Get("/movies/{movieID}", APIMovie(d.Movies))
		r.Get("/lists/{slot}", APIList(d.Store))
		r.Post("/lists/{slot}", APIToggle(d.Store))
		r.Get("/lists/{slot}/{movieID}", APIContains(d.Store))
		r.Delete("/lists/{slot}/{movieID}", APIRemove(d.Store))
		r.Get("/theme", APITheme(d.Store))
		r.Put("/theme", APISetTheme(d.Store))
		r.Get("/stats", APIStats(d.Store))
	})

	return r
}
