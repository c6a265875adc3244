package model

import (
	"github.com/spf13/cast"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

// Parameters renders a tool's input schema as a JSON-schema object, the form
// most function-calling APIs accept.
func Parameters(t tools.Tool) map[string]any {
	props := make(map[string]any, len(t.Inputs.Properties))
	for name, p := range t.Inputs.Properties {
		props[name] = p
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.Inputs.Required) > 0 {
		out["required"] = append([]string(nil), t.Inputs.Required...)
	}
	return out
}

// PropertySchema is the subset of a JSON-schema property adapters translate.
type PropertySchema struct {
	Type        string
	Description string
	Enum        []string
	Items       *PropertySchema
	Properties  map[string]*PropertySchema
	Required    []string
}

// ParseProperty reads a raw schema property. Unknown or missing types default
// to string.
func ParseProperty(raw any) *PropertySchema {
	m := cast.ToStringMap(raw)
	ps := &PropertySchema{
		Type:        cast.ToString(m["type"]),
		Description: cast.ToString(m["description"]),
		Enum:        cast.ToStringSlice(m["enum"]),
		Required:    cast.ToStringSlice(m["required"]),
	}
	if ps.Type == "" {
		if types := cast.ToStringSlice(m["type"]); len(types) > 0 {
			ps.Type = types[0]
		}
	}
	switch ps.Type {
	case "string", "number", "integer", "boolean", "array", "object":
	default:
		ps.Type = "string"
	}
	if items, ok := m["items"]; ok {
		ps.Items = ParseProperty(items)
	} else if ps.Type == "array" {
		ps.Items = &PropertySchema{Type: "string"}
	}
	if props := cast.ToStringMap(m["properties"]); len(props) > 0 {
		ps.Properties = make(map[string]*PropertySchema, len(props))
		for name, p := range props {
			ps.Properties[name] = ParseProperty(p)
		}
	}
	return ps
}
