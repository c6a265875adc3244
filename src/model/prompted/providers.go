package prompted

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/json"
)

// HTTPDoer is implemented by *http.Client. It allows provider clients to be
// configured with custom transports while remaining testable.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type clientConfig struct {
	httpClient HTTPDoer
	baseURL    string
}

// ClientOption configures the raw completion clients below.
type ClientOption func(*clientConfig)

// WithHTTPClient overrides the HTTP client used to reach the backend.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithBaseURL sets a custom endpoint. This is primarily useful for testing.
func WithBaseURL(baseURL string) ClientOption {
	return func(cfg *clientConfig) {
		if strings.TrimSpace(baseURL) != "" {
			cfg.baseURL = baseURL
		}
	}
}

func newClientConfig(defaultURL string, opts []ClientOption) *clientConfig {
	cfg := &clientConfig{httpClient: http.DefaultClient, baseURL: defaultURL}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = http.DefaultClient
	}
	return cfg
}

func postJSON(ctx context.Context, doer HTTPDoer, endpoint, backend string, payload any, headers map[string]string) (*http.Response, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := doer.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s request failed: %s", backend, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// --- OpenAI -----------------------------------------------------------------

// OpenAIClient completes prompts with OpenAI's Chat Completions endpoint.
type OpenAIClient struct {
	httpClient HTTPDoer
	apiKey     string
	model      string
	baseURL    string
}

func NewOpenAIClient(apiKey, model string, opts ...ClientOption) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai model must not be empty")
	}
	cfg := newClientConfig("https://api.openai.com/v1/chat/completions", opts)
	return &OpenAIClient{httpClient: cfg.httpClient, apiKey: apiKey, model: model, baseURL: cfg.baseURL}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	resp, err := postJSON(ctx, c.httpClient, c.baseURL, "openai", payload, map[string]string{"Authorization": "Bearer " + c.apiKey})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openai response missing choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// --- Gemini -----------------------------------------------------------------

// GeminiClient completes prompts with the Gemini REST API.
type GeminiClient struct {
	httpClient HTTPDoer
	apiKey     string
	model      string
	baseURL    string
}

func NewGeminiClient(apiKey, model string, opts ...ClientOption) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini model must not be empty")
	}
	cfg := newClientConfig("https://generativelanguage.googleapis.com", opts)
	return &GeminiClient{httpClient: cfg.httpClient, apiKey: apiKey, model: model, baseURL: cfg.baseURL}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	base.Path = path.Join(base.Path, "v1beta", "models", c.model+":generateContent")
	q := base.Query()
	q.Set("key", c.apiKey)
	base.RawQuery = q.Encode()

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	resp, err := postJSON(ctx, c.httpClient, base.String(), "gemini", payload, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini response missing candidates")
	}
	var b strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

// --- Ollama -----------------------------------------------------------------

// OllamaClient completes prompts with a running Ollama daemon.
type OllamaClient struct {
	httpClient HTTPDoer
	model      string
	baseURL    string
}

func NewOllamaClient(model string, opts ...ClientOption) (*OllamaClient, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("ollama model must not be empty")
	}
	cfg := newClientConfig("http://localhost:11434/api/generate", opts)
	return &OllamaClient{httpClient: cfg.httpClient, model: model, baseURL: cfg.baseURL}, nil
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	resp, err := postJSON(ctx, c.httpClient, c.baseURL, "ollama", payload, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Some proxies ignore stream=false and answer with NDJSON chunks.
	if strings.Contains(resp.Header.Get("Content-Type"), "ndjson") {
		out, err := collectStreamingOllamaResponse(resp.Body)
		return strings.TrimSpace(out), err
	}
	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return strings.TrimSpace(decoded.Response), nil
}

func collectStreamingOllamaResponse(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", err
		}
		b.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}
