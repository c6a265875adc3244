package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// ToolInputOutputSchema mirrors the JSON schema a tool server publishes for
// its arguments.
type ToolInputOutputSchema struct {
	Type        string                 `json:"type"`                 // e.g. "object", "array", "string"
	Properties  map[string]interface{} `json:"properties,omitempty"` // field schemas
	Required    []string               `json:"required,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// Tool is one capability discovered from the tool server. It is immutable
// once it has been placed in a Catalog.
type Tool struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Inputs      ToolInputOutputSchema `json:"inputs"`
}

// Param is the flattened view of a single schema property.
type Param struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// Params returns the tool's parameters sorted by name.
func (t Tool) Params() []Param {
	required := make(map[string]bool, len(t.Inputs.Required))
	for _, r := range t.Inputs.Required {
		required[r] = true
	}
	names := make([]string, 0, len(t.Inputs.Properties))
	for name := range t.Inputs.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Param, 0, len(names))
	for _, name := range names {
		prop := cast.ToStringMap(t.Inputs.Properties[name])
		params = append(params, Param{
			Name:        name,
			Type:        cast.ToString(prop["type"]),
			Required:    required[name],
			Description: cast.ToString(prop["description"]),
		})
	}
	return params
}

// MissingArguments lists required parameters absent from args.
func (t Tool) MissingArguments(args map[string]any) []string {
	var missing []string
	for _, name := range t.Inputs.Required {
		if v, ok := args[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Validate checks the fields a usable capability must carry.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tool has no name")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("tool %q has no description", t.Name)
	}
	if t.Inputs.Type != "object" {
		return fmt.Errorf("tool %q: input schema type is %q, want \"object\"", t.Name, t.Inputs.Type)
	}
	for _, r := range t.Inputs.Required {
		if _, ok := t.Inputs.Properties[r]; !ok {
			return fmt.Errorf("tool %q: required parameter %q is not a declared property", t.Name, r)
		}
	}
	return nil
}
