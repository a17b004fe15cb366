package templates

import (
	"embed"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/icco/popcorn/models"
)

//go:embed *.html
var FS embed.FS

// ParseTemplates parses HTML templates from the embedded filesystem.
// The first file is the layout that gets executed; extra holds functions
// that depend on runtime configuration, such as the poster URL builder.
func ParseTemplates(extra template.FuncMap, files ...string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"upper": strings.ToUpper,
		"genreNames": func(genres []models.Genre) string {
			names := make([]string, 0, len(genres))
			for _, g := range genres {
				names = append(names, g.Name)
			}
			return strings.Join(names, ", ")
		},
		"movieJSON": func(m models.Movie) (string, error) {
			b, err := json.Marshal(m)
			return string(b), err
		},
	}
	for name, fn := range extra {
		funcMap[name] = fn
	}

	return template.New(files[0]).Funcs(funcMap).ParseFS(FS, files...)
}
