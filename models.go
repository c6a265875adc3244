package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/config"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model/gemini"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model/openai"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model/prompted"
)

// NewModel builds the adapter named by mc. The returned closer, when not
// nil, must be closed once the model is no longer used.
func NewModel(ctx context.Context, mc config.ModelConfig, logger *slog.Logger) (model.Model, io.Closer, error) {
	var (
		m      model.Model
		closer io.Closer
		err    error
	)
	switch {
	case mc.Provider == config.ProviderOllama || mc.Prompted:
		m, err = newPrompted(mc, logger)
	case mc.Provider == config.ProviderGemini:
		var a *gemini.Adapter
		a, err = gemini.New(ctx, mc.APIKey, mc.Name, gemini.WithLogger(logger))
		if a != nil {
			m, closer = a, a
		}
	case mc.Provider == config.ProviderOpenAI:
		m, err = openai.New(mc.APIKey, mc.Name, openai.WithBaseURL(mc.BaseURL), openai.WithLogger(logger))
	default:
		err = &errorsx.ConfigError{Key: "model.provider", Reason: fmt.Sprintf("unsupported provider %q", mc.Provider)}
	}
	if err != nil {
		return nil, nil, err
	}
	if mc.Retries > 0 {
		m = model.WithRetry(m, model.RetryConfig{MaxAttempts: mc.Retries + 1, Jitter: mc.RetryJitter, Logger: logger})
	}
	return m, closer, nil
}

func newPrompted(mc config.ModelConfig, logger *slog.Logger) (model.Model, error) {
	var opts []prompted.ClientOption
	if mc.BaseURL != "" {
		opts = append(opts, prompted.WithBaseURL(mc.BaseURL))
	}
	var (
		llm prompted.LLM
		err error
	)
	switch mc.Provider {
	case config.ProviderOllama:
		llm, err = prompted.NewOllamaClient(mc.Name, opts...)
	case config.ProviderOpenAI:
		llm, err = prompted.NewOpenAIClient(mc.APIKey, mc.Name, opts...)
	case config.ProviderGemini:
		llm, err = prompted.NewGeminiClient(mc.APIKey, mc.Name, opts...)
	default:
		return nil, &errorsx.ConfigError{Key: "model.provider", Reason: fmt.Sprintf("unsupported provider %q", mc.Provider)}
	}
	if err != nil {
		return nil, &errorsx.ConfigError{Key: "model", Reason: err.Error()}
	}
	return prompted.New(mc.Name, llm, prompted.WithLogger(logger))
}
