package conversation

import (
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

// Observer receives progress events from a conversation. Calls happen on the
// conversation goroutine, in order.
type Observer interface {
	Discovered(catalog []tools.Tool)
	ModelTurn(turn int, req model.Request)
	Invocation(turn int, call model.Call)
	InvocationResult(turn int, call model.Call, text string, err error)
	Answer(text string)
}

// ObserverFuncs adapts optional callbacks to Observer. Nil fields are
// skipped.
type ObserverFuncs struct {
	OnDiscovered       func(catalog []tools.Tool)
	OnModelTurn        func(turn int, req model.Request)
	OnInvocation       func(turn int, call model.Call)
	OnInvocationResult func(turn int, call model.Call, text string, err error)
	OnAnswer           func(text string)
}

func (o ObserverFuncs) Discovered(catalog []tools.Tool) {
	if o.OnDiscovered != nil {
		o.OnDiscovered(catalog)
	}
}

func (o ObserverFuncs) ModelTurn(turn int, req model.Request) {
	if o.OnModelTurn != nil {
		o.OnModelTurn(turn, req)
	}
}

func (o ObserverFuncs) Invocation(turn int, call model.Call) {
	if o.OnInvocation != nil {
		o.OnInvocation(turn, call)
	}
}

func (o ObserverFuncs) InvocationResult(turn int, call model.Call, text string, err error) {
	if o.OnInvocationResult != nil {
		o.OnInvocationResult(turn, call, text, err)
	}
}

func (o ObserverFuncs) Answer(text string) {
	if o.OnAnswer != nil {
		o.OnAnswer(text)
	}
}
