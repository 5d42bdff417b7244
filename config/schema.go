package config

//go:generate go run ../tools/schema-generator -o ../linkwatch.schema.json

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for linkwatch.yml.
// It reflects the Config struct but leaves the top level open, since
// extension sections such as "logging" are decoded separately.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Nested sections are strict; only the root accepts extension keys.
		AllowAdditionalProperties: false,
		// Expand struct references instead of using $ref for cleaner base schema.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
		Anonymous:    true,
	}

	schema := r.Reflect(&Config{})
	schema.Title = "linkwatch configuration"
	schema.Description = "Projects, content handles and watch settings for linkwatch."
	schema.AdditionalProperties = jsonschema.TrueSchema

	return json.MarshalIndent(schema, "", "  ")
}
