// Package openai adapts OpenAI chat completions with tools to model.Model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/json"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

const DefaultModel = goopenai.GPT4oMini

type config struct {
	baseURL     string
	httpClient  *http.Client
	temperature float32
	logger      *slog.Logger
}

type Option func(*config)

// WithBaseURL points the client at a compatible endpoint, e.g. a local
// gateway or a test server.
func WithBaseURL(u string) Option {
	return func(c *config) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *config) { c.httpClient = h }
}

func WithTemperature(t float32) Option {
	return func(c *config) { c.temperature = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

type Adapter struct {
	client      *goopenai.Client
	name        string
	temperature float32
	logger      *slog.Logger
}

func New(apiKey, modelName string, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key must not be empty")
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	cc := goopenai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		cc.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		cc.HTTPClient = cfg.httpClient
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModel
	}
	return &Adapter{
		client:      goopenai.NewClientWithConfig(cc),
		name:        modelName,
		temperature: cfg.temperature,
		logger:      logging.Component(cfg.logger, "openai"),
	}, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	msgs, err := ToMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}
	creq := goopenai.ChatCompletionRequest{
		Model:       a.name,
		Messages:    msgs,
		Temperature: a.temperature,
	}
	if len(req.Tools) > 0 {
		creq.Tools = MapTools(req.Tools)
		creq.ToolChoice = "auto"
	}
	a.logger.Debug("sending turn", "model", a.name, "messages", len(msgs), "tools", len(req.Tools))
	resp, err := a.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, err
	}
	return FromResponse(resp)
}

// MapTools converts catalog tools to OpenAI function tools.
func MapTools(ts []tools.Tool) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(ts))
	for _, t := range ts {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  model.Parameters(t),
			},
		})
	}
	return out
}

// ToMessages converts the transcript. Each tool result becomes its own tool
// message keyed by call ID.
func ToMessages(system string, msgs []model.Message) ([]goopenai.ChatCompletionMessage, error) {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	for i, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: m.Text})
		case model.RoleModel:
			msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: m.Text}
			for _, c := range m.Calls {
				args := []byte("{}")
				var err error
				if len(c.Arguments) > 0 {
					args, err = json.Marshal(c.Arguments)
				}
				if err != nil {
					return nil, fmt.Errorf("openai: encode arguments for %s: %w", c.Name, err)
				}
				msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
					ID:       c.ID,
					Type:     goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{Name: c.Name, Arguments: string(args)},
				})
			}
			out = append(out, msg)
		case model.RoleTool:
			if len(m.Results) == 0 {
				out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: m.Text})
				continue
			}
			for _, r := range m.Results {
				out = append(out, goopenai.ChatCompletionMessage{
					Role:       goopenai.ChatMessageRoleTool,
					Content:    r.Content,
					Name:       r.Name,
					ToolCallID: r.CallID,
				})
			}
		default:
			return nil, fmt.Errorf("openai: message %d has unsupported role %q", i, m.Role)
		}
	}
	return out, nil
}

// FromResponse reads the first choice. Arguments that are not a JSON object
// are an error since the call cannot be executed.
func FromResponse(resp goopenai.ChatCompletionResponse) (*model.Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai response missing choices")
	}
	msg := resp.Choices[0].Message
	reply := &model.Reply{Text: strings.TrimSpace(msg.Content)}
	for _, tc := range msg.ToolCalls {
		args, err := json.DecodeObject(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("openai: decode arguments for %s: %w", tc.Function.Name, err)
		}
		reply.Calls = append(reply.Calls, model.Call{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return reply, nil
}
