// Package model defines the narrow contract between the conversation driver
// and a language model backend with function calling.
package model

import (
	"context"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	// RoleTool messages carry invocation results back to the model.
	RoleTool Role = "tool"
)

// Call is one invocation requested by the model.
type Call struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallResult pairs a Call with its normalized text outcome.
type CallResult struct {
	CallID  string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// Message is one entry of the running transcript.
//
// User messages set Text. Model messages set Text and/or Calls. Tool messages
// set Results, one per Call of the preceding model message, and Text with the
// combined feedback for backends that only accept text.
type Message struct {
	Role    Role         `json:"role"`
	Text    string       `json:"text,omitempty"`
	Calls   []Call       `json:"calls,omitempty"`
	Results []CallResult `json:"results,omitempty"`
}

// Request is everything a backend needs for one turn.
type Request struct {
	System   string
	Messages []Message
	Tools    []tools.Tool
}

// Reply is the model's answer for one turn: either plain text or a batch of
// calls.
type Reply struct {
	Text  string
	Calls []Call
}

// HasCalls reports whether the reply requests any invocation.
func (r *Reply) HasCalls() bool { return r != nil && len(r.Calls) > 0 }

// Model is implemented by each backend adapter. Implementations hold no
// conversation state; the full transcript is passed on every turn.
type Model interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Reply, error)
}
