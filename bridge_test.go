package bridge_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/universal-tool-calling-protocol/go-mcp-bridge"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/config"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/conversation"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model/modeltest"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp/mcptest"
)

func newBridge(t *testing.T, m model.Model) (*bridge.Bridge, *mcptest.Counter) {
	t.Helper()
	counter := &mcptest.Counter{}
	mgr, err := mcptest.Manager(mcptest.NewServer(), counter)
	require.NoError(t, err)
	b, err := bridge.New(mgr, m)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, counter
}

func TestBridge_Answer(t *testing.T) {
	m := modeltest.New(
		modeltest.Calls(model.Call{Name: "fetch_url", Arguments: map[string]any{"url": "https://example.com"}}),
		modeltest.Text("example.com is up."),
	)
	b, counter := newBridge(t, m)

	got, err := b.Answer(context.Background(), "is example.com up?")
	require.NoError(t, err)
	assert.Equal(t, "example.com is up.", got)
	assert.EqualValues(t, 1, counter.Dials.Load())
	assert.EqualValues(t, 1, counter.Closes.Load())
	assert.Same(t, m, b.Model())
}

func TestBridge_SessionPerOperation(t *testing.T) {
	b, counter := newBridge(t, modeltest.New(modeltest.Text("one"), modeltest.Text("two")))

	_, err := b.Answer(context.Background(), "first")
	require.NoError(t, err)
	_, err = b.Answer(context.Background(), "second")
	require.NoError(t, err)
	_, err = b.DiscoverCapabilities(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 3, counter.Dials.Load())
	assert.EqualValues(t, 3, counter.Closes.Load())
	assert.EqualValues(t, 3, counter.Lists.Load())
}

func TestBridge_Probe(t *testing.T) {
	b, _ := newBridge(t, nil)
	res, err := b.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mcptest", res.Server)
	assert.Equal(t, "mcptest", res.ServerName)
	assert.Equal(t, "1.0.0", res.ServerVersion)
	assert.NotEmpty(t, res.Tools)

	_, err = b.Answer(context.Background(), "hi")
	assert.Error(t, err)
}

func TestBridge_DiscoverCapabilities(t *testing.T) {
	for _, m := range []model.Model{nil, modeltest.New()} {
		b, counter := newBridge(t, m)
		list, err := b.DiscoverCapabilities(context.Background())
		require.NoError(t, err)
		names := make([]string, 0, len(list))
		for _, tl := range list {
			names = append(names, tl.Name)
		}
		assert.Contains(t, names, "fetch_url")
		assert.EqualValues(t, 1, counter.Dials.Load())
		assert.EqualValues(t, 1, counter.Closes.Load())
		assert.EqualValues(t, 0, counter.Calls.Load())
	}
}

func TestBridge_Invoke(t *testing.T) {
	b, counter := newBridge(t, nil)

	res, err := b.Invoke(context.Background(), "browserbase_navigate", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Navigated to https://example.com", res.Text())

	_, err = b.Invoke(context.Background(), "delete_everything", nil)
	var unk *errorsx.UnknownCapabilityError
	require.ErrorAs(t, err, &unk)
	assert.EqualValues(t, 1, counter.Calls.Load())
}

func TestNew_RequiresManager(t *testing.T) {
	_, err := bridge.New(nil, modeltest.New())
	assert.Error(t, err)
}

func TestNewFromConfig_PromptedOllama(t *testing.T) {
	var turns atomic.Int32
	var secondPrompt string
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if turns.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"response":"{\"tool_calls\":[{\"name\":\"fetch_url\",\"arguments\":{\"url\":\"https://example.com\"}}]}"}`))
			return
		}
		secondPrompt = string(body)
		_, _ = w.Write([]byte(`{"response":"The page returned OK."}`))
	}))
	t.Cleanup(ollama.Close)

	cfg := config.Config{
		Model:        config.ModelConfig{Provider: config.ProviderOllama, Name: "llama3", BaseURL: ollama.URL},
		Server:       config.ServerConfig{Name: "mcptest", Command: "mcptest-server"},
		Conversation: config.ConversationConfig{MaxTurns: 4},
	}
	counter := &mcptest.Counter{}
	var answers []string
	b, err := bridge.NewFromConfig(context.Background(), cfg,
		bridge.WithDialer(mcptest.CountingDialer(mcptest.NewServer(), counter)),
		bridge.WithObserver(conversationAnswers(&answers)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	assert.Equal(t, "llama3", b.Model().Name())

	got, err := b.Answer(context.Background(), "check example.com")
	require.NoError(t, err)
	assert.Equal(t, "The page returned OK.", got)
	assert.EqualValues(t, 2, turns.Load())
	assert.Equal(t, []string{"fetch_url"}, counter.CalledTools())
	assert.True(t, strings.Contains(secondPrompt, "fetch_url: OK"), secondPrompt)
	assert.Equal(t, []string{"The page returned OK."}, answers)
}

func TestNewFromConfig_InvalidConfig(t *testing.T) {
	cfg := config.Config{
		Model:        config.ModelConfig{Provider: config.ProviderGemini, APIKey: "your_gemini_api_key_here"},
		Server:       config.ServerConfig{Name: "mcptest", Command: "mcptest-server"},
		Conversation: config.ConversationConfig{MaxTurns: 4},
	}
	_, err := bridge.NewFromConfig(context.Background(), cfg)
	var cerr *errorsx.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "GEMINI_API_KEY", cerr.Key)
}

func TestNewFromConfig_UnreachableServer(t *testing.T) {
	cfg := config.Config{
		Model:        config.ModelConfig{Provider: config.ProviderOllama, Name: "llama3", BaseURL: "http://127.0.0.1:1"},
		Server:       config.ServerConfig{Name: "mcptest", Command: "mcptest-server"},
		Conversation: config.ConversationConfig{MaxTurns: 4},
	}
	b, err := bridge.NewFromConfig(context.Background(), cfg,
		bridge.WithDialer(mcptest.FailingDialer(errors.New("exec: not found"))))
	require.NoError(t, err)

	_, err = b.Answer(context.Background(), "hi")
	var conn *errorsx.ConnectionError
	require.ErrorAs(t, err, &conn)
	assert.Equal(t, "spawn", conn.Op)
}

func conversationAnswers(out *[]string) conversation.Observer {
	return conversation.ObserverFuncs{OnAnswer: func(text string) { *out = append(*out, text) }}
}
