package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["name"],
	"additionalProperties": false
}`

func newTestValidator(t *testing.T) SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator("test.schema.json", []byte(testSchema))
	require.NoError(t, err)
	return v
}

func TestSchemaValidator_ValidateBytes(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name      string
		data      string
		wantError bool
		errorMsg  string
	}{
		{name: "valid data", data: `{"name": "John", "age": 30}`},
		{name: "valid data without optional field", data: `{"name": "Jane"}`},
		{name: "missing required field", data: `{"age": 25}`, wantError: true, errorMsg: "required"},
		{name: "wrong type for field", data: `{"name": "John", "age": "thirty"}`, wantError: true, errorMsg: "/age"},
		{name: "negative age", data: `{"name": "John", "age": -5}`, wantError: true, errorMsg: "minimum"},
		{name: "unknown field", data: `{"name": "John", "nickname": "J"}`, wantError: true, errorMsg: "additionalProperties"},
		{name: "invalid JSON", data: `{"name": "John"`, wantError: true, errorMsg: "failed to parse JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateBytes([]byte(tt.data))
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSchemaValidator_ValidateDocument(t *testing.T) {
	v := newTestValidator(t)

	assert.NoError(t, v.ValidateDocument(map[string]interface{}{
		"name": "John",
		"age":  30,
		"tags": []interface{}{"a", "b"},
	}))

	err := v.ValidateDocument(map[string]interface{}{
		"name": "John",
		"tags": []interface{}{"a", 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/tags/1")
}

func TestNewSchemaValidator_InvalidSchema(t *testing.T) {
	_, err := NewSchemaValidator("broken.schema.json", []byte(`{"type": `))
	assert.ErrorContains(t, err, "failed to parse schema")

	_, err = NewSchemaValidator("bad-type.schema.json", []byte(`{"type": 12}`))
	assert.ErrorContains(t, err, "failed to compile schema")
}
