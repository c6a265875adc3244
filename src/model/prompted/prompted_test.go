package prompted

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

type llmFunc func(ctx context.Context, prompt string) (string, error)

func (f llmFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantText  string
		wantCalls []model.Call
		wantErr   bool
	}{
		{name: "plain text", raw: "  Hello there!  ", wantText: "Hello there!"},
		{
			name:      "fenced tool call",
			raw:       "```json\n{\"tool_calls\":[{\"name\":\"fetch_url\",\"arguments\":{\"url\":\"https://example.com\"}}]}\n```",
			wantCalls: []model.Call{{Name: "fetch_url", Arguments: map[string]any{"url": "https://example.com"}}},
		},
		{
			name:      "prose around json",
			raw:       "Sure. {\"tool_calls\":[{\"name\":\"noop\"}]} done",
			wantCalls: []model.Call{{Name: "noop", Arguments: map[string]any{}}},
		},
		{name: "answer object", raw: `{"answer":"42"}`, wantText: "42"},
		{name: "braces in prose", raw: "use {curly} braces", wantText: "use {curly} braces"},
		{name: "broken tool call", raw: `{"tool_calls":[{"name":}]}`, wantErr: true},
		{name: "nameless call", raw: `{"tool_calls":[{"arguments":{}}]}`, wantErr: true},
		{name: "empty", raw: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := DecodeReply(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, reply.Text)
			assert.Equal(t, tt.wantCalls, reply.Calls)
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	prompt := RenderPrompt(model.Request{
		System: "You are a browsing assistant.",
		Tools: []tools.Tool{{
			Name:        "browserbase_navigate",
			Description: "Navigate to a URL",
			Inputs: tools.ToolInputOutputSchema{
				Type:       "object",
				Properties: map[string]interface{}{"url": map[string]any{"type": "string", "description": "Target"}},
				Required:   []string{"url"},
			},
		}},
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "open example.com"},
			{Role: model.RoleModel, Calls: []model.Call{{Name: "browserbase_navigate", Arguments: map[string]any{"url": "https://example.com"}}}},
			{Role: model.RoleTool, Text: "browserbase_navigate: Navigated to https://example.com"},
		},
	})

	assert.Contains(t, prompt, "You are a browsing assistant.")
	assert.Contains(t, prompt, "- browserbase_navigate: Navigate to a URL")
	assert.Contains(t, prompt, "url (string, required): Target")
	assert.Contains(t, prompt, "User: open example.com")
	assert.Contains(t, prompt, `"tool_calls"`)
	assert.Contains(t, prompt, "Tool results:\nbrowserbase_navigate: Navigated to https://example.com")
}

func TestAdapterGenerate(t *testing.T) {
	var prompts []string
	a, err := New("llama3", llmFunc(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return `{"tool_calls":[{"name":"fetch_url","arguments":{"url":"https://example.com"}}]}`, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "llama3", a.Name())

	reply, err := a.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Text: "check"}}})
	require.NoError(t, err)
	require.Len(t, reply.Calls, 1)
	assert.Equal(t, "fetch_url", reply.Calls[0].Name)
	assert.Len(t, prompts, 1)

	boom := errors.New("connection refused")
	failing, err := New("llama3", llmFunc(func(context.Context, string) (string, error) { return "", boom }))
	require.NoError(t, err)
	_, err = failing.Generate(context.Background(), model.Request{})
	assert.ErrorIs(t, err, boom)

	_, err = New("x", nil)
	assert.Error(t, err)
}
