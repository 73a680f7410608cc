// Package tools defines the uniform tool result contract consumed by the
// agent turn engine: a closed error-kind enum, an envelope wrapping either a
// success payload or a structured error, and structural secret redaction
// over tool-call argument trees.
package tools

import "encoding/json"

// ErrorType is the closed set of tool failure kinds. Anything else is a bug.
type ErrorType string

const (
	ErrValidation         ErrorType = "validation_error"
	ErrExecution          ErrorType = "execution_error"
	ErrConnectorNotConfig ErrorType = "connector_not_configured"
	ErrInvalidCredentials ErrorType = "invalid_credentials"
	ErrPermissionDenied   ErrorType = "permission_denied"
	ErrRateLimited        ErrorType = "rate_limited"
)

// Envelope is the uniform tool output contract: exactly one of Data (when
// OK) or the error fields (when not) is populated.
type Envelope struct {
	OK          bool            `json:"ok"`
	Data        json.RawMessage `json:"data,omitempty"`
	ErrorType   ErrorType       `json:"error_type,omitempty"`
	UserMessage string          `json:"user_message,omitempty"`
	Connector   string          `json:"connector,omitempty"`
}

// OK builds a success envelope around an arbitrary payload.
func OK(data any) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		return Err(ErrExecution, "failed to encode tool result")
	}
	return Envelope{OK: true, Data: raw}
}

// Err builds a failure envelope for the given kind and caller-visible message.
func Err(kind ErrorType, userMessage string) Envelope {
	return Envelope{OK: false, ErrorType: kind, UserMessage: userMessage}
}

// ErrConnector is Err with a connector name attached, for connector-sourced
// failures (internal/connectors.ToToolError's counterpart at the C2 layer).
func ErrConnector(kind ErrorType, userMessage, connector string) Envelope {
	return Envelope{OK: false, ErrorType: kind, UserMessage: userMessage, Connector: connector}
}

// IsRetryable reports whether a tool may safely retry after this error kind.
// Rate-limited and transient execution errors on idempotent tools are retry
// candidates; the retry itself is the tool's responsibility, never the turn
// engine's.
func (k ErrorType) IsRetryable() bool {
	switch k {
	case ErrRateLimited, ErrExecution:
		return true
	default:
		return false
	}
}
