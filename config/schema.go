package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// SchemaValidationError is one schema violation.
type SchemaValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

// Error implements the error interface
func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaErrors collects every violation found in a document.
type SchemaErrors []SchemaValidationError

func (e SchemaErrors) Error() string {
	lines := make([]string, len(e))
	for i, v := range e {
		lines[i] = "  - " + v.Error()
	}
	return "configuration does not match schema:\n" + strings.Join(lines, "\n")
}

// ValidateSchema checks raw YAML against the embedded LiveGame schema.
func ValidateSchema(yamlData []byte) error {
	var data interface{}
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if data == nil {
		return fmt.Errorf("empty document")
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to convert to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make(SchemaErrors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, SchemaValidationError{
			Field:       re.Field(),
			Description: re.Description(),
			Value:       re.Value(),
		})
	}
	return errs
}
