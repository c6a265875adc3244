package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/json"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

var fetchURL = tools.Tool{
	Name:        "fetch_url",
	Description: "Fetch a URL",
	Inputs: tools.ToolInputOutputSchema{
		Type:       "object",
		Properties: map[string]interface{}{"url": map[string]any{"type": "string"}},
		Required:   []string{"url"},
	},
}

func TestToMessages(t *testing.T) {
	msgs, err := ToMessages("be brief", []model.Message{
		{Role: model.RoleUser, Text: "check example.com"},
		{Role: model.RoleModel, Calls: []model.Call{
			{ID: "call_1", Name: "fetch_url", Arguments: map[string]any{"url": "https://example.com"}},
			{ID: "call_2", Name: "noop"},
		}},
		{Role: model.RoleTool, Results: []model.CallResult{
			{CallID: "call_1", Name: "fetch_url", Content: "OK"},
			{CallID: "call_2", Name: "noop", Content: "Tool executed successfully"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	assert.Equal(t, goopenai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, goopenai.ChatMessageRoleUser, msgs[1].Role)
	require.Len(t, msgs[2].ToolCalls, 2)
	assert.JSONEq(t, `{"url":"https://example.com"}`, msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "{}", msgs[2].ToolCalls[1].Function.Arguments)
	assert.Equal(t, goopenai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "OK", msgs[3].Content)
	assert.Equal(t, "call_2", msgs[4].ToolCallID)
}

func TestFromResponse(t *testing.T) {
	reply, err := FromResponse(goopenai.ChatCompletionResponse{Choices: []goopenai.ChatCompletionChoice{{
		Message: goopenai.ChatCompletionMessage{
			Role: goopenai.ChatMessageRoleAssistant,
			ToolCalls: []goopenai.ToolCall{{
				ID:       "call_9",
				Type:     goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{Name: "fetch_url", Arguments: `{"url":"https://example.com"}`},
			}},
		},
	}}})
	require.NoError(t, err)
	require.Len(t, reply.Calls, 1)
	assert.Equal(t, model.Call{ID: "call_9", Name: "fetch_url", Arguments: map[string]any{"url": "https://example.com"}}, reply.Calls[0])

	_, err = FromResponse(goopenai.ChatCompletionResponse{})
	assert.EqualError(t, err, "openai response missing choices")

	_, err = FromResponse(goopenai.ChatCompletionResponse{Choices: []goopenai.ChatCompletionChoice{{
		Message: goopenai.ChatCompletionMessage{ToolCalls: []goopenai.ToolCall{{Function: goopenai.FunctionCall{Name: "x", Arguments: "{not json"}}}},
	}}})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	var captured map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hello from OpenAI"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(server.Close)

	a, err := New("secret", "gpt-test", WithBaseURL(server.URL+"/v1"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", a.Name())

	reply, err := a.Generate(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "say hello, use no tools"}},
		Tools:    []tools.Tool{fetchURL},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from OpenAI", reply.Text)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "gpt-test", captured["model"])
	assert.Len(t, captured["tools"], 1)
}

func TestGenerate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(server.Close)

	a, err := New("bad", "", WithBaseURL(server.URL))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, a.Name())

	_, err = a.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("", "gpt-test")
	assert.Error(t, err)
}
