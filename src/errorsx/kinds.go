package errorsx

import "errors"

// Kind is a short machine-readable error classification.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindConfig            Kind = "config"
	KindConnection        Kind = "connection"
	KindProtocol          Kind = "protocol"
	KindUnknownCapability Kind = "unknown_capability"
	KindToolExecution     Kind = "tool_execution"
	KindModel             Kind = "model"
)

var (
	ErrSessionClosed    = errors.New("session is closed")
	ErrSessionNotReady  = errors.New("session is not ready")
	ErrMissingArgument  = errors.New("missing required argument")
	ErrMaxTurnsExceeded = errors.New("maximum number of model turns exceeded")
)

// KindOf classifies err by the outermost taxonomy error it contains.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		cfg  *ConfigError
		conn *ConnectionError
		prot *ProtocolError
		unk  *UnknownCapabilityError
		exec *ToolExecutionError
		mod  *ModelError
	)
	switch {
	case errors.As(err, &mod):
		return KindModel
	case errors.As(err, &conn):
		return KindConnection
	case errors.As(err, &prot):
		return KindProtocol
	case errors.As(err, &cfg):
		return KindConfig
	case errors.As(err, &unk):
		return KindUnknownCapability
	case errors.As(err, &exec):
		return KindToolExecution
	}
	return KindUnknown
}

// Fatal reports whether err must abort the whole operation. Unknown
// capabilities and tool failures are folded into the conversation instead.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindUnknownCapability, KindToolExecution:
		return false
	case KindUnknown:
		return err != nil
	}
	return true
}
