package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// languageRegex matches ISO 639-1 codes as TMDB uses them.
var languageRegex = regexp.MustCompile(`^[a-z]{2}$`)

// firstFilmYear bounds year filters from below; nothing older is indexed.
const firstFilmYear = 1874

// ValidateYear parses a release year and rejects values outside the range
// TMDB can answer for.
func ValidateYear(year string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return 0, fmt.Errorf("invalid year: %q", year)
	}
	if maxYear := time.Now().Year() + 10; y < firstFilmYear || y > maxYear {
		return 0, fmt.Errorf("year must be between %d and %d", firstFilmYear, maxYear)
	}
	return y, nil
}

// ValidateLanguage checks for a two-letter lowercase language code.
func ValidateLanguage(code string) error {
	if !languageRegex.MatchString(code) {
		return fmt.Errorf("invalid language code: %q, expected two lowercase letters", code)
	}
	return nil
}

// ValidateID parses a positive integer identifier such as a movie or genre id.
func ValidateID(name, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// ValidateOneOf checks value against a fixed set of allowed values.
func ValidateOneOf(name, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("invalid %s: %q, expected one of %s", name, value, strings.Join(allowed, ", "))
	}
	return nil
}

// ValidateQuery trims a free-text search query and limits its length.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if len(q) > 200 {
		return "", fmt.Errorf("search query is too long")
	}
	return q, nil
}

// WriteError writes a validation error response to the HTTP response writer.
// It takes a response writer, error message, and HTTP status code.
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		slog.Error("Failed to encode error response", slog.Any("error", err))
	}
}
