package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/icco/popcorn/handlers/templates"
	"github.com/icco/popcorn/lib/browse"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/lib/tmdb"
	"github.com/icco/popcorn/lib/validation"
	"github.com/icco/popcorn/models"
	"golang.org/x/sync/errgroup"
)

// MovieSource is the TMDB client as the pages use it.
type MovieSource interface {
	browse.Source
	Details(ctx context.Context, movieID int) (*models.Movie, error)
	PosterURL(posterPath string) string
}

// detailFetchLimit bounds concurrent detail requests on the favourites page.
const detailFetchLimit = 4

// layout carries what base.html needs on every page.
type layout struct {
	Title    string
	DarkMode bool
	Back     string
}

type card struct {
	Movie models.Movie
	On    bool
}

// choice is a dropdown option and whether it renders selected.
type choice struct {
	browse.Option
	Selected bool
}

type homeData struct {
	layout
	Heading     string
	Query       string
	Genres      []choice
	TimePeriods []choice
	Years       []choice
	Languages   []choice
	Cards       []card
	Error       string
}

// choices marks the first option matching value as selected. Catalogues
// may repeat a value, and a browser shows the last selected option.
func choices(opts []browse.Option, value string) []choice {
	out := make([]choice, len(opts))
	marked := value == ""
	for i, o := range opts {
		out[i] = choice{Option: o}
		if !marked && o.Value == value {
			out[i].Selected = true
			marked = true
		}
	}
	return out
}

type detailData struct {
	layout
	BackLink    string
	Movie       models.Movie
	Favourite   bool
	Watchlisted bool
}

type favouritesData struct {
	layout
	Movies []models.Movie
}

type watchlistData struct {
	layout
	Cards []card
}

type errorData struct {
	layout
	Message string
}

func render(w http.ResponseWriter, funcs template.FuncMap, page string, data any, status int) {
	tmpl, err := templates.ParseTemplates(funcs, "base.html", page)
	if err != nil {
		slog.Error("Failed to parse template", slog.String("page", page), slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("Failed to execute template", slog.String("page", page), slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Failed to write response", slog.Any("error", err))
	}
}

func renderError(w http.ResponseWriter, req *http.Request, st *store.Store, message string, status int) {
	render(w, nil, "error.html", errorData{
		layout:  layout{Title: "Error", DarkMode: st.DarkMode(req.Context()), Back: "/"},
		Message: message,
	}, status)
}

func posterFuncs(src MovieSource) template.FuncMap {
	return template.FuncMap{"poster": src.PosterURL}
}

// safeBack returns raw when it is a local path, otherwise fallback.
func safeBack(raw, fallback string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	return raw
}

// refererPath returns the path of a same-host referer other than the
// current page, or "/".
func refererPath(req *http.Request) string {
	u, err := url.Parse(req.Referer())
	if err != nil || u.Host != req.Host || u.Path == req.URL.Path {
		return "/"
	}
	return safeBack(u.RequestURI(), "/")
}

func redirectBack(w http.ResponseWriter, req *http.Request, fallback string) {
	http.Redirect(w, req, safeBack(req.FormValue("back"), fallback), http.StatusSeeOther)
}

func movieIDParam(req *http.Request) (int, error) {
	return validation.ValidateID("movie id", chi.URLParam(req, "movieID"))
}

func membership(movies []models.Movie) map[int]bool {
	set := make(map[int]bool, len(movies))
	for _, m := range movies {
		set[m.ID] = true
	}
	return set
}

// HandleHome renders the browse grid for the filter in the query string.
func HandleHome(st *store.Store, src MovieSource, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		filter, err := browse.FromValues(req.URL.Query())
		if err != nil {
			renderError(w, req, st, err.Error(), http.StatusBadRequest)
			return
		}

		res := browse.Fetch(ctx, src, filter)
		watchlist := membership(st.Load(ctx, models.SlotWatchlist))

		data := homeData{
			layout: layout{
				Title:    res.Title,
				DarkMode: st.DarkMode(ctx),
				Back:     req.URL.RequestURI(),
			},
			Heading: res.Title,
			Query:   filter.Query,
		}
		selected := map[browse.Kind]string{}
		if kind, value, ok := filter.Active(); ok {
			selected[kind] = value
		}
		data.Genres = choices(browse.Genres, selected[browse.KindGenre])
		data.TimePeriods = choices(browse.TimePeriods, selected[browse.KindTimePeriod])
		data.Years = choices(browse.Years(now()), selected[browse.KindYear])
		data.Languages = choices(browse.Languages, selected[browse.KindLanguage])

		status := http.StatusOK
		if !res.OK() {
			data.Error = res.Err.Error()
			status = http.StatusBadGateway
		}
		for _, m := range res.Movies {
			data.Cards = append(data.Cards, card{Movie: m, On: watchlist[m.ID]})
		}

		render(w, posterFuncs(src), "home.html", data, status)
	}
}

// HandleWatchlistToggle toggles the posted movie record in the watchlist.
// The record is stored as posted, in whatever shape the page had it.
func HandleWatchlistToggle(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		movie, err := validation.ValidateAndParseMovie([]byte(req.FormValue("movie")))
		if err != nil {
			renderError(w, req, st, "That movie could not be read.", http.StatusBadRequest)
			return
		}

		if _, err := st.Toggle(req.Context(), models.SlotWatchlist, *movie); err != nil {
			slog.Error("Failed to toggle watchlist", slog.Int("movie_id", movie.ID), slog.Any("error", err))
			renderError(w, req, st, "We couldn't update your watchlist.", http.StatusInternalServerError)
			return
		}
		redirectBack(w, req, "/")
	}
}

func HandleMovie(st *store.Store, src MovieSource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		id, err := movieIDParam(req)
		if err != nil {
			renderError(w, req, st, "Movie not found.", http.StatusNotFound)
			return
		}

		movie, err := src.Details(ctx, id)
		if err != nil {
			if errors.Is(err, tmdb.ErrNotFound) {
				renderError(w, req, st, "Movie not found.", http.StatusNotFound)
				return
			}
			slog.Error("Failed to fetch movie details", slog.Int("movie_id", id), slog.Any("error", err))
			renderError(w, req, st, "We couldn't load this movie right now. Please try again later.", http.StatusBadGateway)
			return
		}

		render(w, posterFuncs(src), "detail.html", detailData{
			layout: layout{
				Title:    movie.Title,
				DarkMode: st.DarkMode(ctx),
				Back:     req.URL.RequestURI(),
			},
			BackLink:    refererPath(req),
			Movie:       *movie,
			Favourite:   st.Contains(ctx, models.SlotFavorites, movie.ID),
			Watchlisted: st.Contains(ctx, models.SlotWatchlist, movie.ID),
		}, http.StatusOK)
	}
}

// HandleFavouriteToggle toggles a movie in favourites from its detail page.
// It stores the full detail record, falling back to the posted one when
// TMDB is unreachable.
func HandleFavouriteToggle(st *store.Store, src MovieSource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		id, err := movieIDParam(req)
		if err != nil {
			renderError(w, req, st, "Movie not found.", http.StatusNotFound)
			return
		}

		movie, err := src.Details(ctx, id)
		if err != nil {
			slog.Warn("Details unavailable, using posted record", slog.Int("movie_id", id), slog.Any("error", err))
			movie, err = validation.ValidateAndParseMovie([]byte(req.FormValue("movie")))
			if err != nil || movie.ID != id {
				renderError(w, req, st, "We couldn't load this movie right now. Please try again later.", http.StatusBadGateway)
				return
			}
		}

		if _, err := st.Toggle(ctx, models.SlotFavorites, *movie); err != nil {
			slog.Error("Failed to toggle favourite", slog.Int("movie_id", id), slog.Any("error", err))
			renderError(w, req, st, "We couldn't update your favourites.", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, req, "/movie/"+strconv.Itoa(id), http.StatusSeeOther)
	}
}

// HandleFavourites lists favourites. Records saved without details are
// completed from TMDB for display only; a failed lookup keeps the record.
func HandleFavourites(st *store.Store, src MovieSource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		movies := st.Load(ctx, models.SlotFavorites)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(detailFetchLimit)
		for i, m := range movies {
			if m.HasDetails() {
				continue
			}
			g.Go(func() error {
				full, err := src.Details(gctx, m.ID)
				if err != nil {
					slog.Warn("Failed to complete favourite", slog.Int("movie_id", m.ID), slog.Any("error", err))
					return nil
				}
				movies[i] = *full
				return nil
			})
		}
		_ = g.Wait()

		render(w, posterFuncs(src), "favourites.html", favouritesData{
			layout: layout{Title: "Favourites", DarkMode: st.DarkMode(ctx), Back: "/favourites"},
			Movies: movies,
		}, http.StatusOK)
	}
}

func HandleWatchlist(st *store.Store, src MovieSource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		favourites := membership(st.Load(ctx, models.SlotFavorites))

		data := watchlistData{
			layout: layout{Title: "Watchlist", DarkMode: st.DarkMode(ctx), Back: "/watchlist"},
		}
		for _, m := range st.Load(ctx, models.SlotWatchlist) {
			data.Cards = append(data.Cards, card{Movie: m, On: favourites[m.ID]})
		}

		render(w, posterFuncs(src), "watchlist.html", data, http.StatusOK)
	}
}

// HandleRemove drops a movie from slot and redirects to redirect.
func HandleRemove(st *store.Store, slot, redirect string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := movieIDParam(req)
		if err != nil {
			renderError(w, req, st, "Movie not found.", http.StatusNotFound)
			return
		}

		if _, err := st.Remove(req.Context(), slot, id); err != nil {
			slog.Error("Failed to remove movie", slog.String("slot", slot), slog.Int("movie_id", id), slog.Any("error", err))
			renderError(w, req, st, "We couldn't update your list.", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, req, redirect, http.StatusSeeOther)
	}
}

// HandleWatchlistFavourite copies a watchlist entry into favourites. The
// entry stays on the watchlist.
func HandleWatchlistFavourite(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		id, err := movieIDParam(req)
		if err != nil {
			renderError(w, req, st, "Movie not found.", http.StatusNotFound)
			return
		}

		var movie *models.Movie
		for _, m := range st.Load(ctx, models.SlotWatchlist) {
			if m.ID == id {
				movie = &m
				break
			}
		}
		if movie == nil {
			renderError(w, req, st, "That movie is not on your watchlist.", http.StatusNotFound)
			return
		}

		if _, err := st.Add(ctx, models.SlotFavorites, *movie); err != nil {
			slog.Error("Failed to add favourite", slog.Int("movie_id", id), slog.Any("error", err))
			renderError(w, req, st, "We couldn't update your favourites.", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, req, "/watchlist", http.StatusSeeOther)
	}
}

func HandleThemeToggle(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if _, err := st.ToggleDarkMode(req.Context()); err != nil {
			slog.Error("Failed to toggle dark mode", slog.Any("error", err))
			renderError(w, req, st, "We couldn't change the theme.", http.StatusInternalServerError)
			return
		}
		redirectBack(w, req, "/")
	}
}
