package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/domain/catalog"
	"github.com/tetkool/concierge/internal/domain/tool"
)

const (
	GetCoursesName = "get_courses"

	// NothingFoundText is returned when a lookup yields no courses.
	NothingFoundText = "К сожалению, по вашему запросу ничего не найдено."
)

// CourseQuery is the argument object of get_courses.
type CourseQuery struct {
	Category    string `json:"category,omitempty" validate:"max=64" jsonschema_description:"The category of the course, e.g. 'IT', 'Кулинария', 'Языки', 'Бизнес'."`
	SearchQuery string `json:"search_query,omitempty" validate:"max=256" jsonschema_description:"A keyword to search for in the course name or description."`
}

// CourseLookup answers get_courses from an in-memory catalog.
type CourseLookup struct {
	catalog      *catalog.Catalog
	nothingFound string
	log          zerolog.Logger
}

func NewCourseLookup(c *catalog.Catalog, nothingFound string, log zerolog.Logger) *CourseLookup {
	if nothingFound == "" {
		nothingFound = NothingFoundText
	}
	return &CourseLookup{
		catalog:      c,
		nothingFound: nothingFound,
		log:          log.With().Str("tool", GetCoursesName).Logger(),
	}
}

func (l *CourseLookup) Definition() tool.Definition {
	return tool.Definition{
		Name: GetCoursesName,
		Description: "Get a list of available courses. Can filter by category and/or search query. " +
			"Use this whenever the user asks about courses, prices, dates or formats.",
		Parameters: tool.MustSchemaFor(CourseQuery{}),
	}
}

// Handle returns matching courses as an indented JSON array, or the nothing-found text.
func (l *CourseLookup) Handle(_ context.Context, arguments json.RawMessage) (string, error) {
	var query CourseQuery
	if err := decodeArguments(arguments, &query); err != nil {
		return "", err
	}

	matches := l.catalog.Search(catalog.Query{Category: query.Category, SearchQuery: query.SearchQuery})
	l.log.Debug().
		Str("category", query.Category).
		Str("search_query", query.SearchQuery).
		Int("matches", len(matches)).
		Msg("course lookup")
	if len(matches) == 0 {
		return l.nothingFound, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(matches); err != nil {
		return "", fmt.Errorf("encode courses: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
