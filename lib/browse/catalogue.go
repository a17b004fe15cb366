package browse

import (
	"strconv"
	"strings"
	"time"

	"github.com/icco/popcorn/lib/tmdb"
)

// Option is one entry of a filter dropdown.
type Option struct {
	Value string
	Label string
}

// Genres is the genre dropdown. Biography has no TMDB genre of its own and
// maps to Drama, so id 18 appears twice.
var Genres = []Option{
	{"28", "Action"},
	{"12", "Adventure"},
	{"35", "Comedy"},
	{"18", "Drama"},
	{"14", "Fantasy"},
	{"27", "Horror"},
	{"10749", "Romance"},
	{"53", "Thriller"},
	{"16", "Animation"},
	{"99", "Documentary"},
	{"10751", "Family"},
	{"9648", "Mystery"},
	{"80", "Crime"},
	{"36", "Historical"},
	{"18", "Biography"},
}

var TimePeriods = []Option{
	{tmdb.PeriodNewReleases, "New Releases"},
	{tmdb.PeriodUpcoming, "Upcoming Movies"},
	{tmdb.PeriodClassics, "Classics"},
	{tmdb.PeriodThisYear, "Movies Released This Year"},
	{tmdb.Period90s, "90s Movies"},
	{tmdb.Period80s, "80s Movies"},
}

var Languages = []Option{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"hi", "Hindi"},
	{"si", "Sinhala"},
}

// FirstYear is the oldest entry of the year dropdown.
const FirstYear = 2000

// Years lists FirstYear through the year of now, oldest first.
func Years(now time.Time) []Option {
	var out []Option
	for y := FirstYear; y <= now.Year(); y++ {
		s := strconv.Itoa(y)
		out = append(out, Option{s, s})
	}
	return out
}

func values(opts []Option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}

func label(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// GenreName returns the first dropdown label for id.
func GenreName(id int) string {
	return label(Genres, strconv.Itoa(id))
}

// LanguageName returns the dropdown label for a language code, or the code
// upper-cased when it is not in the dropdown.
func LanguageName(code string) string {
	for _, o := range Languages {
		if o.Value == code {
			return o.Label
		}
	}
	return strings.ToUpper(code)
}
