package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() JSONSchema {
	return JSONSchema{
		Type:                 "object",
		AdditionalProperties: false,
		Properties: map[string]Property{
			"name":  {Type: "string"},
			"level": {Type: "string", Enum: []string{"low", "high"}},
			"score": {Type: "integer", Minimum: Float(0), Maximum: Float(100)},
			"tags":  {Type: "array", Items: &Property{Type: "string"}},
		},
		Required: []string{"name", "level"},
	}
}

func TestValidate_ValidDocument(t *testing.T) {
	doc := map[string]interface{}{
		"name":  "x",
		"level": "low",
		"score": json.Number("42"),
		"tags":  []interface{}{"a"},
	}
	res, err := Validate(doc, testSchema())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidate_ReportsViolations(t *testing.T) {
	doc := map[string]interface{}{
		"level": "medium",
		"score": 150,
		"extra": true,
	}
	res, err := Validate(doc, testSchema())
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("level"))
	assert.True(t, res.HasErrors("score"))
	assert.NotEmpty(t, res.GetErrorMessages())
}

func TestJSONSchema_EmitsClosedFieldSet(t *testing.T) {
	m, err := testSchema().Map()
	require.NoError(t, err)
	assert.Equal(t, false, m["additionalProperties"])
	assert.Equal(t, "object", m["type"])
}
