package errorsx

import (
	"fmt"
	"strings"
)

// ConfigError reports a missing or placeholder setting detected before any
// session is opened.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config %s is not set", e.Key)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// ConnectionError means the tool server could not be spawned, configured or
// initialized. Op names the step that failed.
type ConnectionError struct {
	Server string
	Op     string
	Err    error
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	b.WriteString("mcp server")
	if e.Server != "" {
		fmt.Fprintf(&b, " %q", e.Server)
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
		b.WriteString(" failed")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError means the tool server sent a reply the bridge cannot use,
// usually an incompatible server version.
type ProtocolError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol error"
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// UnknownCapabilityError is returned when an invocation names an operation
// outside the discovered catalog.
type UnknownCapabilityError struct {
	Name string
}

func (e *UnknownCapabilityError) Error() string {
	return "unknown capability: " + e.Name
}

// ToolExecutionError wraps a failed invocation. Its message is phrased so it
// can be handed to the model verbatim.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	if e.Err == nil {
		return "Error executing " + e.Name
	}
	return fmt.Sprintf("Error executing %s: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ModelError means the model backend failed or replied with something the
// driver cannot interpret. Transcript holds the exchange up to the failure.
type ModelError struct {
	Model      string
	Op         string
	Err        error
	Transcript []string
}

func (e *ModelError) Error() string {
	msg := "model"
	if e.Model != "" {
		msg += " " + e.Model
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelError) Unwrap() error { return e.Err }
