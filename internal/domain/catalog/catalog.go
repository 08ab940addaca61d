package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Course is one catalog entry.
type Course struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Currency    string          `json:"currency,omitempty" yaml:"currency"`
	Duration    string          `json:"duration,omitempty" yaml:"duration"`
	StartDate   string          `json:"start_date,omitempty" yaml:"start_date"`
	Format      string          `json:"format,omitempty" yaml:"format"`
}

// Category groups courses under a key such as "IT" or "Кулинария".
type Category struct {
	Key     string
	Courses []Course
}

// Match is a course found by Search together with its category key.
type Match struct {
	Category string `json:"category"`
	Course
}

// Query selects courses. Both fields are optional.
type Query struct {
	Category    string
	SearchQuery string
}

// Catalog is an immutable, ordered set of categories. Safe for concurrent reads.
type Catalog struct {
	categories []Category
}

func New(categories []Category) *Catalog {
	copied := make([]Category, len(categories))
	for i, category := range categories {
		copied[i] = Category{
			Key:     category.Key,
			Courses: append([]Course(nil), category.Courses...),
		}
	}
	return &Catalog{categories: copied}
}

// Categories lists the category keys in catalog order.
func (c *Catalog) Categories() []string {
	keys := make([]string, 0, len(c.categories))
	for _, category := range c.categories {
		keys = append(keys, category.Key)
	}
	return keys
}

// Size returns the number of courses across all categories.
func (c *Catalog) Size() int {
	total := 0
	for _, category := range c.categories {
		total += len(category.Courses)
	}
	return total
}

// Search narrows by category (case-insensitive exact key match, whitespace
// included; an unknown key matches nothing) and then by a case-insensitive substring of name or description.
func (c *Catalog) Search(q Query) []Match {
	var matches []Match

	category := q.Category
	for _, cat := range c.categories {
		if category != "" && !strings.EqualFold(cat.Key, category) {
			continue
		}
		for _, course := range cat.Courses {
			matches = append(matches, Match{Category: cat.Key, Course: course})
		}
		if category != "" {
			break
		}
	}

	needle := strings.ToLower(strings.TrimSpace(q.SearchQuery))
	if needle == "" {
		return matches
	}

	filtered := matches[:0]
	for _, match := range matches {
		if strings.Contains(strings.ToLower(match.Name), needle) ||
			strings.Contains(strings.ToLower(match.Description), needle) {
			filtered = append(filtered, match)
		}
	}
	return filtered
}
