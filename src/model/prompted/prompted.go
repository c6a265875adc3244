// Package prompted drives text-only language models by describing the tool
// catalog in the prompt and decoding a JSON invocation block out of the
// answer.
package prompted

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/json"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
)

// LLM is a plain prompt-in, text-out completion backend.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Option func(*Adapter)

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Adapter implements model.Model on top of an LLM.
type Adapter struct {
	llm    LLM
	name   string
	logger *slog.Logger
}

func New(name string, llm LLM, opts ...Option) (*Adapter, error) {
	if llm == nil {
		return nil, errors.New("llm must not be nil")
	}
	a := &Adapter{llm: llm, name: name}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.Component(a.logger, "prompted")
	return a, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	prompt := RenderPrompt(req)
	raw, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("raw completion", "model", a.name, "chars", len(raw))
	return DecodeReply(raw)
}

// RenderPrompt lays out the system text, the tool list and the transcript.
func RenderPrompt(req model.Request) string {
	var b strings.Builder
	if s := strings.TrimSpace(req.System); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	if len(req.Tools) > 0 {
		b.WriteString("You can use the following tools:\n")
		for _, t := range req.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
			for _, p := range t.Params() {
				need := "optional"
				if p.Required {
					need = "required"
				}
				fmt.Fprintf(&b, "    %s (%s, %s)", p.Name, orDefault(p.Type, "any"), need)
				if p.Description != "" {
					b.WriteString(": " + p.Description)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\nTo use tools, respond with only a JSON object of the form ")
		b.WriteString(`{"tool_calls":[{"name":"<tool>","arguments":{...}}]}`)
		b.WriteString(". Otherwise respond with your final answer as plain text.\n\n")
	}

	b.WriteString("<<CONVERSATION>>\n")
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser:
			b.WriteString("User: " + m.Text + "\n")
		case model.RoleModel:
			if m.Text != "" {
				b.WriteString("Assistant: " + m.Text + "\n")
			}
			if len(m.Calls) > 0 {
				encoded, _ := json.Marshal(map[string]any{"tool_calls": m.Calls})
				b.WriteString("Assistant: " + string(encoded) + "\n")
			}
		case model.RoleTool:
			b.WriteString("Tool results:\n" + m.Text + "\n")
		}
	}
	b.WriteString("<<END_CONVERSATION>>\n")
	return b.String()
}

type plannedCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type plannedReply struct {
	ToolCalls []plannedCall `json:"tool_calls"`
	Answer    *string       `json:"answer"`
}

// DecodeReply extracts a JSON object from raw, tolerating code fences and
// surrounding prose. Text without an invocation block is the final answer.
func DecodeReply(raw string) (*model.Reply, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("model returned an empty reply")
	}
	candidate := strings.Trim(trimmed, "`\n")
	candidate = strings.TrimPrefix(candidate, "json\n")
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end < start {
		return &model.Reply{Text: trimmed}, nil
	}
	candidate = candidate[start : end+1]

	var planned plannedReply
	if err := json.Unmarshal([]byte(candidate), &planned); err != nil {
		if strings.Contains(candidate, `"tool_calls"`) {
			return nil, fmt.Errorf("failed to decode tool calls: %w", err)
		}
		return &model.Reply{Text: trimmed}, nil
	}
	if len(planned.ToolCalls) == 0 {
		if planned.Answer != nil {
			return &model.Reply{Text: strings.TrimSpace(*planned.Answer)}, nil
		}
		return &model.Reply{Text: trimmed}, nil
	}

	reply := &model.Reply{}
	for i, c := range planned.ToolCalls {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("tool call %d did not specify a tool", i)
		}
		args := c.Arguments
		if args == nil {
			args = map[string]any{}
		}
		reply.Calls = append(reply.Calls, model.Call{Name: name, Arguments: args})
	}
	return reply, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
