package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/icco/popcorn/lib/browse"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/lib/tmdb"
	"github.com/icco/popcorn/lib/validation"
	"github.com/icco/popcorn/models"
)

const maxBodyBytes = 1 << 20

type moviesResponse struct {
	Title   string         `json:"title"`
	Results []models.Movie `json:"results"`
}

type containsResponse struct {
	Slot     string `json:"slot"`
	MovieID  int    `json:"movieId"`
	Contains bool   `json:"contains"`
}

type themeBody struct {
	DarkMode bool `json:"darkMode"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

func slotParam(w http.ResponseWriter, req *http.Request) (string, bool) {
	slot := chi.URLParam(req, "slot")
	if !store.IsListSlot(slot) {
		validation.WriteError(w, fmt.Errorf("%w: %q", store.ErrUnknownSlot, slot), http.StatusNotFound)
		return "", false
	}
	return slot, true
}

// APIMovies answers the same filters as the browse page. An upstream
// failure is a 502 with the reason, never an empty list.
func APIMovies(src MovieSource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter, err := browse.FromValues(req.URL.Query())
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		res := browse.Fetch(req.Context(), src, filter)
		if !res.OK() {
			validation.WriteError(w, res.Err, http.StatusBadGateway)
			return
		}
		writeJSON(w, moviesResponse{Title: res.Title, Results: res.Movies}, http.StatusOK)
	}
}

func APIMovie(src MovieSource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := movieIDParam(req)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		movie, err := src.Details(req.Context(), id)
		switch {
		case errors.Is(err, tmdb.ErrNotFound):
			validation.WriteError(w, err, http.StatusNotFound)
		case err != nil:
			validation.WriteError(w, err, http.StatusBadGateway)
		default:
			writeJSON(w, movie, http.StatusOK)
		}
	}
}

func APIList(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		slot, ok := slotParam(w, req)
		if !ok {
			return
		}
		writeJSON(w, st.Load(req.Context(), slot), http.StatusOK)
	}
}

// APIToggle toggles the movie in the request body and returns the new list.
func APIToggle(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		slot, ok := slotParam(w, req)
		if !ok {
			return
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}
		movie, err := validation.ValidateAndParseMovie(body)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		movies, err := st.Toggle(req.Context(), slot, *movie)
		if err != nil {
			slog.Error("Failed to toggle movie", slog.String("slot", slot), slog.Int("movie_id", movie.ID), slog.Any("error", err))
			validation.WriteError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, movies, http.StatusOK)
	}
}

func APIContains(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		slot, ok := slotParam(w, req)
		if !ok {
			return
		}
		id, err := movieIDParam(req)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, containsResponse{
			Slot:     slot,
			MovieID:  id,
			Contains: st.Contains(req.Context(), slot, id),
		}, http.StatusOK)
	}
}

func APIRemove(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		slot, ok := slotParam(w, req)
		if !ok {
			return
		}
		id, err := movieIDParam(req)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		movies, err := st.Remove(req.Context(), slot, id)
		if err != nil {
			slog.Error("Failed to remove movie", slog.String("slot", slot), slog.Int("movie_id", id), slog.Any("error", err))
			validation.WriteError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, movies, http.StatusOK)
	}
}

func APITheme(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, themeBody{DarkMode: st.DarkMode(req.Context())}, http.StatusOK)
	}
}

func APISetTheme(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body themeBody
		if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
			validation.WriteError(w, fmt.Errorf("invalid theme body: %w", err), http.StatusBadRequest)
			return
		}
		if err := st.SetDarkMode(req.Context(), body.DarkMode); err != nil {
			slog.Error("Failed to set dark mode", slog.Any("error", err))
			validation.WriteError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, body, http.StatusOK)
	}
}

func APIStats(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, st.Stats(req.Context()), http.StatusOK)
	}
}
