package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects the JSON schema of an argument struct. Fields without
// omitempty are required; descriptions come from jsonschema_description tags.
func SchemaFor(args any) (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(args)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out, nil
}

// MustSchemaFor is SchemaFor for package-level tool declarations.
func MustSchemaFor(args any) map[string]any {
	schema, err := SchemaFor(args)
	if err != nil {
		panic(err)
	}
	return schema
}
