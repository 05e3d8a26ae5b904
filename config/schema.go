package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/grovetools/presence/schema"
)

//go:generate go run ../tools/schema-generator/

// GenerateSchema generates the JSON Schema for presence.yml from Config.
// Extension sections such as "logging" are not part of it.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Refs resolve against the resource name the validator compiles under.
		Anonymous:      true,
		ExpandedStruct: true,
		FieldNameTag:   "yaml",
	}

	s := r.Reflect(&Config{})
	s.Title = "Presence Configuration"
	s.Description = "Schema for presence.yml."

	return json.MarshalIndent(s, "", "  ")
}

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// SchemaValidator validates configuration against the generated schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator returns a validator for Config. The schema is generated
// and compiled once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	validatorOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			validatorErr = err
			return
		}
		validator, validatorErr = schema.NewValidator("presence.json", data)
	})
	if validatorErr != nil {
		return nil, validatorErr
	}
	return &SchemaValidator{validator: validator}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
