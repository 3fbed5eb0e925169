package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator validates documents against one compiled JSON schema
type SchemaValidator interface {
	// ValidateBytes validates JSON data
	ValidateBytes(data []byte) error
	// ValidateDocument validates an already-decoded document, e.g. from YAML
	ValidateDocument(doc interface{}) error
}

type validator struct {
	name   string
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles schema, registered under name for error messages
func NewSchemaValidator(name string, schema []byte) (SchemaValidator, error) {
	var schemaJSON interface{}
	if err := json.Unmarshal(schema, &schemaJSON); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaJSON); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &validator{name: name, schema: compiled}, nil
}

// ValidateBytes validates JSON data bytes against the schema
func (v *validator) ValidateBytes(data []byte) error {
	var jsonData interface{}
	if err := json.Unmarshal(data, &jsonData); err != nil {
		return fmt.Errorf("failed to parse JSON data: %w", err)
	}

	if err := v.schema.Validate(jsonData); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateDocument re-encodes doc as JSON so YAML scalars are checked with
// JSON types, then validates it
func (v *validator) ValidateDocument(doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return v.ValidateBytes(data)
}

// formatValidationError formats validation errors to be user-friendly
func formatValidationError(err error) error {
	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		var messages []string
		collectErrors(validationErr, &messages)
		return fmt.Errorf("schema validation failed:\n%s", strings.Join(messages, "\n"))
	}
	return fmt.Errorf("validation error: %w", err)
}

// collectErrors recursively collects leaf validation errors
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if len(err.Causes) == 0 {
		*messages = append(*messages, formatError(err))
		return
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}

// formatError formats a single validation error
func formatError(err *jsonschema.ValidationError) string {
	location := strings.Join(err.InstanceLocation, "/")
	if location == "" {
		location = "(root)"
	} else {
		location = "/" + location
	}

	keywords := ""
	if err.ErrorKind != nil {
		if keywordPath := err.ErrorKind.KeywordPath(); len(keywordPath) > 0 {
			keywords = strings.Join(keywordPath, ".")
		}
	}

	if keywords != "" {
		return fmt.Sprintf("  - at %s: %s validation failed", location, keywords)
	}
	return fmt.Sprintf("  - at %s: validation failed", location)
}
