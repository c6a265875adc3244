package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
)

func navigateTool() Tool {
	return Tool{
		Name:        "browserbase_navigate",
		Description: "Navigate to a URL",
		Inputs: ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{"type": "string", "description": "The URL to navigate to"},
			},
			Required: []string{"url"},
		},
	}
}

func screenshotTool() Tool {
	return Tool{
		Name:        "browserbase_take_screenshot",
		Description: "Take a screenshot of the current page",
		Inputs:      ToolInputOutputSchema{Type: "object"},
	}
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog([]Tool{navigateTool(), screenshotTool()})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"browserbase_navigate", "browserbase_take_screenshot"}, c.Names())

	got, ok := c.Get("browserbase_navigate")
	require.True(t, ok)
	assert.Equal(t, "Navigate to a URL", got.Description)

	_, err = c.Resolve("delete_everything")
	var unknown *errorsx.UnknownCapabilityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "delete_everything", unknown.Name)
}

func TestNewCatalog_WellFormedInvariants(t *testing.T) {
	c, err := NewCatalog([]Tool{navigateTool(), screenshotTool()})
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, tool := range c.Tools() {
		assert.False(t, seen[tool.Name], "duplicate %s", tool.Name)
		seen[tool.Name] = true
		for _, r := range tool.Inputs.Required {
			assert.Contains(t, tool.Inputs.Properties, r)
		}
	}
}

func TestNewCatalog_Malformed(t *testing.T) {
	noName := navigateTool()
	noName.Name = ""
	noDesc := navigateTool()
	noDesc.Description = ""
	noSchema := navigateTool()
	noSchema.Inputs = ToolInputOutputSchema{}
	badRequired := navigateTool()
	badRequired.Inputs.Required = []string{"selector"}

	cases := map[string][]Tool{
		"missing name":        {noName},
		"missing description": {noDesc},
		"missing schema":      {noSchema},
		"undeclared required": {badRequired},
		"duplicate":           {navigateTool(), navigateTool()},
	}
	for name, tools := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCatalog(tools)
			var perr *errorsx.ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "tools/list", perr.Op)
		})
	}
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Tools())
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestTool_Params(t *testing.T) {
	typeTool := Tool{
		Name:        "browserbase_type",
		Description: "Type text into an element",
		Inputs: ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{"type": "string", "description": "Text to type"},
				"ref":  map[string]interface{}{"type": "string", "description": "Reference to the element"},
			},
			Required: []string{"ref", "text"},
		},
	}
	params := typeTool.Params()
	require.Len(t, params, 2)
	assert.Equal(t, Param{Name: "ref", Type: "string", Required: true, Description: "Reference to the element"}, params[0])
	assert.Equal(t, "text", params[1].Name)

	assert.Equal(t, []string{"text"}, typeTool.MissingArguments(map[string]any{"ref": "e1"}))
	assert.Empty(t, typeTool.MissingArguments(map[string]any{"ref": "e1", "text": "hi"}))
	assert.Equal(t, []string{"ref", "text"}, typeTool.MissingArguments(nil))
}
