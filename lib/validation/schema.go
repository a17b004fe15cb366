package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/icco/popcorn/models"
	"github.com/xeipuuv/gojsonschema"
)

// movieSchema is the minimum a stored or posted movie must satisfy. Extra
// fields are allowed since list and detail responses differ in shape.
const movieSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "integer", "minimum": 1},
		"title": {"type": "string"},
		"poster_path": {"type": ["string", "null"]},
		"vote_average": {"type": "number"},
		"genres": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "integer"},
					"name": {"type": "string"}
				},
				"required": ["id"]
			}
		},
		"original_language": {"type": "string"}
	},
	"required": ["id"]
}`

// SlotSchema defines the JSON schema for a persisted movie list.
var SlotSchema = `{"type": "array", "items": ` + movieSchema + `}`

var (
	slotValidator  = mustSchema(SlotSchema)
	movieValidator = mustSchema(movieSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return schema
}

// ValidateSlot validates raw slot JSON against SlotSchema.
func ValidateSlot(jsonData []byte) error {
	return validate(slotValidator, jsonData)
}

// ValidateAndParseSlot validates and decodes a persisted movie list.
func ValidateAndParseSlot(jsonData []byte) ([]models.Movie, error) {
	if err := ValidateSlot(jsonData); err != nil {
		return nil, err
	}

	var movies []models.Movie
	if err := json.Unmarshal(jsonData, &movies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return movies, nil
}

// ValidateAndParseMovie validates and decodes a single movie record, as
// posted by the browse grid.
func ValidateAndParseMovie(jsonData []byte) (*models.Movie, error) {
	if err := validate(movieValidator, jsonData); err != nil {
		return nil, err
	}

	var movie models.Movie
	if err := json.Unmarshal(jsonData, &movie); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return &movie, nil
}

func validate(schema *gojsonschema.Schema, jsonData []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to validate JSON schema: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("JSON validation failed: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}
