// Package gemini adapts Google Gemini function calling to model.Model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

type sendFunc func(ctx context.Context, gm *genai.GenerativeModel, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error)

type config struct {
	clientOpts  []option.ClientOption
	temperature *float32
	logger      *slog.Logger
	send        sendFunc
}

// Option configures an Adapter.
type Option func(*config)

// WithClientOptions forwards options to genai.NewClient, e.g. a custom
// endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) { c.clientOpts = append(c.clientOpts, opts...) }
}

func WithTemperature(t float32) Option {
	return func(c *config) { c.temperature = &t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Adapter drives a Gemini model. The chat history is rebuilt from the
// request on every turn.
type Adapter struct {
	client      *genai.Client
	name        string
	temperature *float32
	logger      *slog.Logger
	send        sendFunc
}

// New creates a Gemini client authenticated with apiKey.
func New(ctx context.Context, apiKey, modelName string, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key must not be empty")
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	a := newAdapter(modelName, cfg)
	if a.send == nil {
		client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, cfg.clientOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		a.client = client
		a.send = sendChat
	}
	return a, nil
}

func newAdapter(modelName string, cfg *config) *Adapter {
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModel
	}
	return &Adapter{
		name:        modelName,
		temperature: cfg.temperature,
		logger:      logging.Component(cfg.logger, "gemini"),
		send:        cfg.send,
	}
}

func (a *Adapter) Name() string { return a.name }

// Close releases the underlying client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func (a *Adapter) Generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	history, err := ToContents(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errors.New("gemini: empty transcript")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return nil, fmt.Errorf("gemini: transcript must end with a user or tool message, got %q", last.Role)
	}

	var gm *genai.GenerativeModel
	if a.client != nil {
		gm = a.client.GenerativeModel(a.name)
	} else {
		gm = &genai.GenerativeModel{}
	}
	if decls := Declarations(req.Tools); len(decls) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if strings.TrimSpace(req.System) != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if a.temperature != nil {
		gm.SetTemperature(*a.temperature)
	}

	a.logger.Debug("sending turn", "model", a.name, "messages", len(history), "tools", len(req.Tools))
	resp, err := a.send(ctx, gm, history[:len(history)-1], last.Parts)
	if err != nil {
		return nil, err
	}
	return FromResponse(resp)
}

func sendChat(ctx context.Context, gm *genai.GenerativeModel, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	cs := gm.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, parts...)
}

// ToContents converts the transcript to Gemini chat contents. Tool results
// become function responses in a user turn.
func ToContents(msgs []model.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Text)}})
		case model.RoleModel:
			c := &genai.Content{Role: "model"}
			if m.Text != "" {
				c.Parts = append(c.Parts, genai.Text(m.Text))
			}
			for _, call := range m.Calls {
				c.Parts = append(c.Parts, genai.FunctionCall{Name: call.Name, Args: call.Arguments})
			}
			if len(c.Parts) == 0 {
				c.Parts = []genai.Part{genai.Text("")}
			}
			out = append(out, c)
		case model.RoleTool:
			c := &genai.Content{Role: "user"}
			for _, r := range m.Results {
				key := "result"
				if r.IsError {
					key = "error"
				}
				c.Parts = append(c.Parts, genai.FunctionResponse{Name: r.Name, Response: map[string]any{key: r.Content}})
			}
			if len(c.Parts) == 0 {
				c.Parts = []genai.Part{genai.Text(m.Text)}
			}
			out = append(out, c)
		default:
			return nil, fmt.Errorf("gemini: message %d has unsupported role %q", i, m.Role)
		}
	}
	return out, nil
}

// Declarations maps catalog tools to Gemini function declarations.
func Declarations(ts []tools.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(ts))
	for _, t := range ts {
		d := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if len(t.Inputs.Properties) > 0 {
			s := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(t.Inputs.Properties)),
				Required:   append([]string(nil), t.Inputs.Required...),
			}
			for name, raw := range t.Inputs.Properties {
				s.Properties[name] = toSchema(model.ParseProperty(raw))
			}
			d.Parameters = s
		}
		decls = append(decls, d)
	}
	return decls
}

func toSchema(ps *model.PropertySchema) *genai.Schema {
	s := &genai.Schema{
		Type:        schemaType(ps.Type),
		Description: ps.Description,
		Enum:        ps.Enum,
		Required:    ps.Required,
	}
	if ps.Items != nil {
		s.Items = toSchema(ps.Items)
	}
	if len(ps.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(ps.Properties))
		for name, p := range ps.Properties {
			s.Properties[name] = toSchema(p)
		}
	}
	return s
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeString
}

// FromResponse extracts text and function calls from the first candidate.
func FromResponse(resp *genai.GenerateContentResponse) (*model.Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini response missing candidates")
	}
	reply := &model.Reply{}
	var text []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if s := strings.TrimSpace(string(p)); s != "" {
				text = append(text, s)
			}
		case genai.FunctionCall:
			reply.Calls = append(reply.Calls, model.Call{Name: p.Name, Arguments: argsOrEmpty(p.Args)})
		case *genai.FunctionCall:
			reply.Calls = append(reply.Calls, model.Call{Name: p.Name, Arguments: argsOrEmpty(p.Args)})
		}
	}
	reply.Text = strings.Join(text, "\n")
	return reply, nil
}

func argsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
