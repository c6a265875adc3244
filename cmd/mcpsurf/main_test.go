package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp/mcptest"
)

type harness struct {
	app     *app
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	counter *mcptest.Counter
	dir     string
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	t.Setenv("BROWSERBASE_API_KEY", "bb_live_0123456789")
	t.Setenv("BROWSERBASE_PROJECT_ID", "proj-0123456789")
	h := &harness{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}, counter: &mcptest.Counter{}, dir: t.TempDir()}
	h.app = &app{
		in:     strings.NewReader(stdin),
		out:    h.out,
		errOut: h.errOut,
		dialer: mcptest.CountingDialer(mcptest.NewServer(), h.counter),
	}
	return h
}

// configFile writes a config pointing at the in-process server and, when
// set, a fake Ollama endpoint.
func (h *harness) configFile(t *testing.T, ollamaURL string) string {
	t.Helper()
	body := "server:\n  name: mcptest\n  command: mcptest-server\nlog:\n  level: error\n"
	if ollamaURL != "" {
		body += fmt.Sprintf("model:\n  provider: ollama\n  name: llama3\n  base_url: %s\n", ollamaURL)
	}
	path := filepath.Join(h.dir, "mcpsurf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (h *harness) run(args ...string) int {
	base := []string{"-env", filepath.Join(h.dir, "missing.env"), "-no-banner"}
	return h.app.run(context.Background(), append(base, args...))
}

func TestRun_Usage(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, exitUsage, h.app.run(context.Background(), nil))
	assert.Contains(t, h.errOut.String(), "usage: mcpsurf")
	assert.Contains(t, h.errOut.String(), "call <name> [json-args]")

	h.errOut.Reset()
	assert.Equal(t, exitUsage, h.run("teleport"))
	assert.Contains(t, h.errOut.String(), `unknown command "teleport"`)

	assert.Equal(t, exitOK, h.app.run(context.Background(), []string{"-h"}))
	assert.Equal(t, exitUsage, h.app.run(context.Background(), []string{"-bogus"}))
}

func TestRun_Tools(t *testing.T) {
	h := newHarness(t, "")
	code := h.run("-config", h.configFile(t, ""), "tools")
	require.Equal(t, exitOK, code, h.errOut.String())

	out := h.out.String()
	assert.Contains(t, out, "mcptest: mcptest 1.0.0")
	assert.Contains(t, out, "\nfetch_url\n  Fetch a URL and return its status\n")
	assert.Contains(t, out, "  - url (string, required): The URL to fetch")
	assert.EqualValues(t, 1, h.counter.Dials.Load())
	assert.EqualValues(t, 1, h.counter.Closes.Load())
}

func TestRun_Call(t *testing.T) {
	h := newHarness(t, "")
	cfg := h.configFile(t, "")

	require.Equal(t, exitOK, h.run("-config", cfg, "call", "browserbase_navigate", `{"url":"https://example.com"}`), h.errOut.String())
	assert.Equal(t, "Navigated to https://example.com\n", h.out.String())

	h.out.Reset()
	assert.Equal(t, exitFailure, h.run("-config", cfg, "call", "browserbase_click", `{"ref":"e1"}`))
	assert.Equal(t, "element not found\n", h.out.String())
	assert.Contains(t, h.errOut.String(), "Error executing browserbase_click")

	h.out.Reset()
	assert.Equal(t, exitOK, h.run("-config", cfg, "call", "noop"))
	assert.Equal(t, "Tool executed successfully\n", h.out.String())

	assert.Equal(t, exitUsage, h.run("-config", cfg, "call", "noop", "{not json"))
	assert.Equal(t, exitUsage, h.run("-config", cfg, "call"))
	assert.Equal(t, []string{"browserbase_navigate", "browserbase_click", "noop"}, h.counter.CalledTools())
}

func TestRun_Status(t *testing.T) {
	h := newHarness(t, "")
	t.Setenv("GEMINI_API_KEY", "")

	assert.Equal(t, exitConfig, h.run("status"))
	out := h.out.String()
	assert.True(t, strings.HasPrefix(out, "COMPONENT"), out)
	assert.Contains(t, out, "gemini API key")
	assert.Contains(t, out, "missing")
	assert.NotContains(t, out, "bb_live_0123456789")
}

func TestRun_AskWithoutKey(t *testing.T) {
	h := newHarness(t, "")
	t.Setenv("GEMINI_API_KEY", "")

	assert.Equal(t, exitConfig, h.run("ask", "hello"))
	assert.Contains(t, h.errOut.String(), "GEMINI_API_KEY")
	assert.EqualValues(t, 0, h.counter.Dials.Load())
}

func fakeOllama(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(replies[i]))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Ask(t *testing.T) {
	h := newHarness(t, "")
	ollama := fakeOllama(t,
		`{"response":"{\"tool_calls\":[{\"name\":\"fetch_url\",\"arguments\":{\"url\":\"https://example.com\"}}]}"}`,
		`{"response":"example.com answered OK."}`,
	)

	code := h.run("-config", h.configFile(t, ollama.URL), "ask", "is", "example.com", "up?")
	require.Equal(t, exitOK, code, h.errOut.String())
	assert.Equal(t, "example.com answered OK.\n", h.out.String())
	assert.Contains(t, h.errOut.String(), `[turn 1] fetch_url {"url":"https://example.com"}`)
	assert.Contains(t, h.errOut.String(), "[turn 1] fetch_url -> OK")
}

func TestRun_Chat(t *testing.T) {
	h := newHarness(t, "hello\n\nBYE\nnever read\n")
	ollama := fakeOllama(t, `{"response":"Hi there."}`)

	code := h.run("-config", h.configFile(t, ollama.URL), "chat")
	require.Equal(t, exitOK, code, h.errOut.String())

	out := h.out.String()
	assert.Contains(t, out, "Connected to mcptest (8 tools)")
	assert.Contains(t, out, "Assistant: Hi there.")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"), out)
	// one probe plus one conversation
	assert.EqualValues(t, 2, h.counter.Dials.Load())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("a\nb", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{usageError("x"), exitUsage},
		{errNotReady, exitConfig},
		{&errorsx.ConfigError{Key: "model.provider"}, exitConfig},
		{&errorsx.ConnectionError{Server: "s", Op: "spawn", Err: errors.New("no")}, exitServer},
		{&errorsx.ProtocolError{Op: "tools/list"}, exitServer},
		{&errorsx.ModelError{Model: "m", Op: "generate", Err: errors.New("no")}, exitModel},
		{fmt.Errorf("wrapped: %w", context.Canceled), exitInterrupted},
		{&errorsx.ToolExecutionError{Name: "t", Err: errors.New("no")}, exitFailure},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, exitCode(c.err), "%v", c.err)
	}
}
