package catalogfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tetkool/concierge/internal/domain/catalog"
)

var (
	ErrNotMapping     = errors.New("catalog root must be a mapping of category to course list")
	ErrEmptyCategory  = errors.New("catalog category key is empty")
	ErrDuplicateEntry = errors.New("catalog category defined twice")
)

// Load reads a catalog from a YAML or JSON file.
func Load(path string) (*catalog.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document. JSON is accepted since it is valid YAML.
// Category order follows the document.
func Parse(raw []byte) (*catalog.Catalog, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return catalog.New(nil), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return catalog.New(nil), nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	seen := make(map[string]struct{}, len(root.Content)/2)
	categories := make([]catalog.Category, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		key := keyNode.Value
		if key == "" {
			return nil, fmt.Errorf("line %d: %w", keyNode.Line, ErrEmptyCategory)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("line %d: %q: %w", keyNode.Line, key, ErrDuplicateEntry)
		}
		seen[key] = struct{}{}

		var courses []catalog.Course
		if err := valueNode.Decode(&courses); err != nil {
			return nil, fmt.Errorf("category %q: %w", key, err)
		}
		categories = append(categories, catalog.Category{Key: key, Courses: courses})
	}
	return catalog.New(categories), nil
}
