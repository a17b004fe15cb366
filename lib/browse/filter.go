// Package browse holds the browse page's filter state and turns it into
// exactly one TMDB request.
package browse

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/icco/popcorn/lib/validation"
)

// Kind names one of the four mutually exclusive dropdowns.
type Kind string

const (
	KindGenre      Kind = "genre"
	KindTimePeriod Kind = "timePeriod"
	KindYear       Kind = "year"
	KindLanguage   Kind = "language"
)

// Kinds is the precedence order used when several dropdowns arrive at once.
var Kinds = []Kind{KindGenre, KindTimePeriod, KindYear, KindLanguage}

// queryParam carries the search text. kindParam names the dropdown that
// changed last and wins over the others.
const (
	queryParam = "q"
	kindParam  = "changed"
)

// Filter is the browse page state. At most one of Genre, TimePeriod, Year
// and Language is set. Query is independent and takes precedence.
type Filter struct {
	Genre      int
	TimePeriod string
	Year       int
	Language   string
	Query      string
}

// Select sets one dropdown and clears the other three. An empty value clears
// every dropdown.
func (f Filter) Select(kind Kind, value string) (Filter, error) {
	next := Filter{Query: f.Query}
	if value == "" {
		if !kind.valid() {
			return f, fmt.Errorf("unknown filter %q", kind)
		}
		return next, nil
	}

	switch kind {
	case KindGenre:
		id, err := validation.ValidateID("genre", value)
		if err != nil {
			return f, err
		}
		next.Genre = id
	case KindTimePeriod:
		if err := validation.ValidateOneOf("time period", value, values(TimePeriods)); err != nil {
			return f, err
		}
		next.TimePeriod = value
	case KindYear:
		y, err := validation.ValidateYear(value)
		if err != nil {
			return f, err
		}
		next.Year = y
	case KindLanguage:
		if err := validation.ValidateLanguage(value); err != nil {
			return f, err
		}
		next.Language = value
	default:
		return f, fmt.Errorf("unknown filter %q", kind)
	}
	return next, nil
}

// WithQuery replaces the search text.
func (f Filter) WithQuery(q string) (Filter, error) {
	q, err := validation.ValidateQuery(q)
	if err != nil {
		return f, err
	}
	f.Query = q
	return f, nil
}

// Active returns the dropdown that is set, if any.
func (f Filter) Active() (Kind, string, bool) {
	switch {
	case f.Genre != 0:
		return KindGenre, strconv.Itoa(f.Genre), true
	case f.TimePeriod != "":
		return KindTimePeriod, f.TimePeriod, true
	case f.Year != 0:
		return KindYear, strconv.Itoa(f.Year), true
	case f.Language != "":
		return KindLanguage, f.Language, true
	}
	return "", "", false
}

// IsZero reports whether nothing is selected, which browses popular movies.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Values encodes f as query parameters understood by FromValues.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Query != "" {
		v.Set(queryParam, f.Query)
	}
	if kind, value, ok := f.Active(); ok {
		v.Set(string(kind), value)
	}
	return v
}

// FromValues parses query parameters. The dropdown named by the "changed"
// parameter wins; otherwise the first non-empty one in Kinds order does.
func FromValues(v url.Values) (Filter, error) {
	f, err := Filter{}.WithQuery(v.Get(queryParam))
	if err != nil {
		return Filter{}, err
	}

	if changed := Kind(v.Get(kindParam)); changed != "" {
		return f.Select(changed, v.Get(string(changed)))
	}
	for _, kind := range Kinds {
		if value := v.Get(string(kind)); value != "" {
			return f.Select(kind, value)
		}
	}
	return f, nil
}

func (k Kind) valid() bool {
	return slices.Contains(Kinds, k)
}
