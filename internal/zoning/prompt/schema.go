package prompt

import (
	"brand-zoning/internal/common/validation"
	"brand-zoning/internal/models"
)

// SchemaName identifies the response contract on the wire.
const SchemaName = "zone_summary"

// SummaryFields lists the required summary keys in wire order.
var SummaryFields = []string{
	"brand", "zone", "zone_name", "subzone", "confidence",
	"drivers", "conflicts", "risks", "next_steps",
}

// ResponseSchema is the closed object contract for the machine-readable summary.
// Field names and enum values are a wire contract with prompts tuned against them.
func ResponseSchema() validation.JSONSchema {
	stringList := &validation.Property{Type: "string"}
	return validation.JSONSchema{
		Type:                 "object",
		AdditionalProperties: false,
		Properties: map[string]validation.Property{
			"brand":      {Type: "string"},
			"zone":       {Type: "string", Enum: append([]string(nil), models.ZoneIDs...)},
			"zone_name":  {Type: "string", Enum: append([]string(nil), models.ZoneNames...)},
			"subzone":    {Type: "string"},
			"confidence": {Type: "integer", Minimum: validation.Float(0), Maximum: validation.Float(100)},
			"drivers":    {Type: "array", Items: stringList},
			"conflicts":  {Type: "array", Items: stringList},
			"risks":      {Type: "array", Items: stringList},
			"next_steps": {Type: "array", Items: stringList},
		},
		Required: append([]string(nil), SummaryFields...),
	}
}
