package models

import (
	"time"
)

// Slot names persisted in the key-value store. The keys match the ones the
// browser build used so exported data stays compatible.
const (
	SlotFavorites = "favorites"
	SlotWatchlist = "watchlist"
	SlotDarkMode  = "darkMode"
)

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie mirrors the TMDB movie object. List endpoints fill GenreIDs,
// the detail endpoint fills Genres.
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	PosterPath       string  `json:"poster_path"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	Genres           []Genre `json:"genres,omitempty"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	OriginalLanguage string  `json:"original_language"`
}

// HasDetails reports whether the record came from the detail endpoint.
func (m Movie) HasDetails() bool {
	return len(m.Genres) > 0
}

// Year returns the release year prefix of ReleaseDate, or "" when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// Slot is one row of the key-value store. Value holds raw JSON.
type Slot struct {
	Key       string `gorm:"primaryKey;column:name;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
