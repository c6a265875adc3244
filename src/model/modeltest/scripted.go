// Package modeltest provides a deterministic model for tests.
package modeltest

import (
	"context"
	"errors"
	"sync"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
)

// ErrScriptExhausted is returned once every scripted step has been used.
var ErrScriptExhausted = errors.New("scripted model has no more replies")

// Step is one scripted turn. If Func is set it computes the reply from the
// request; otherwise Reply and Err are returned as is.
type Step struct {
	Reply *model.Reply
	Err   error
	Func  func(req model.Request) (*model.Reply, error)
}

// Scripted replays Steps in order and records every request.
type Scripted struct {
	name string

	mu       sync.Mutex
	steps    []Step
	requests []model.Request
	loop     bool
}

func New(steps ...Step) *Scripted {
	return &Scripted{name: "scripted", steps: steps}
}

// Text is a step answering with plain text.
func Text(s string) Step { return Step{Reply: &model.Reply{Text: s}} }

// Calls is a step requesting the given invocations.
func Calls(calls ...model.Call) Step { return Step{Reply: &model.Reply{Calls: calls}} }

// Fail is a step whose turn fails with err.
func Fail(err error) Step { return Step{Err: err} }

// Loop makes the last step repeat forever instead of exhausting.
func (s *Scripted) Loop() *Scripted {
	s.mu.Lock()
	s.loop = true
	s.mu.Unlock()
	return s
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, cloneRequest(req))
	var step Step
	switch {
	case idx < len(s.steps):
		step = s.steps[idx]
	case s.loop && len(s.steps) > 0:
		step = s.steps[len(s.steps)-1]
	default:
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	s.mu.Unlock()

	if step.Func != nil {
		return step.Func(req)
	}
	return step.Reply, step.Err
}

// Requests returns a copy of every request received so far.
func (s *Scripted) Requests() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Request(nil), s.requests...)
}

// Turns is the number of Generate calls made.
func (s *Scripted) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Last returns the most recent request.
func (s *Scripted) Last() model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return model.Request{}
	}
	return s.requests[len(s.requests)-1]
}

func cloneRequest(req model.Request) model.Request {
	req.Messages = append([]model.Message(nil), req.Messages...)
	return req
}
