package types

import "time"

// StatsData summarizes the saved lists. Overlap counts movies saved in both.
type StatsData struct {
	TotalFavorites       int       `json:"totalFavorites"`
	TotalWatchlist       int       `json:"totalWatchlist"`
	Overlap              int       `json:"overlap"`
	DarkMode             bool      `json:"darkMode"`
	LastUpdated          time.Time `json:"lastUpdated"`
	LanguageDistribution []Count   `json:"languageDistribution"`
	DecadeDistribution   []Count   `json:"decadeDistribution"`
}

// Count is one bucket of a distribution.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
