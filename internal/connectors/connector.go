// Package connectors defines the boundary contract that any outbound
// integration (webhook, chat platform, ticketing system) must satisfy to
// plug into the agent runtime's tool layer. Concrete platform connectors
// live outside this module; only the contract and its error mapping are
// implemented here.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/channels"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Connector is the minimal contract a concrete integration implements to
// send outbound messages and report its own health.
type Connector interface {
	// Name identifies the connector (e.g. "webhook", "slack").
	Name() string

	// Send delivers a message through the connector. Implementations
	// should return a *Error so failures classify cleanly for retry.
	Send(ctx context.Context, msg *models.Message) error

	// HealthCheck reports whether the connector's upstream is reachable.
	HealthCheck(ctx context.Context) channels.HealthStatus
}

// Error wraps a channels.Error with connector identity, so a caller can
// tell which integration failed without string-matching the message.
type Error struct {
	Connector string
	*channels.Error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connector %s: %s", e.Connector, e.Error.Error())
}

func (e *Error) Unwrap() error {
	return e.Error
}

// NewError wraps a channels.Error with the connector's name.
func NewError(connector string, err *channels.Error) *Error {
	return &Error{Connector: connector, Error: err}
}

// ToToolError maps a connector error onto the agent package's closed
// ToolErrorType set, so tool execution handles connector failures the
// same way it handles any other tool's retry/backoff decisions.
func ToToolError(toolName, toolCallID string, err error) *agent.ToolError {
	var cErr *Error
	if !errors.As(err, &cErr) {
		toolErr := agent.NewToolError(toolName, err)
		toolErr.ToolCallID = toolCallID
		return toolErr
	}

	var toolErrType agent.ToolErrorType
	switch cErr.Code {
	case channels.ErrCodeRateLimit:
		toolErrType = agent.ToolErrorRateLimit
	case channels.ErrCodeTimeout:
		toolErrType = agent.ToolErrorTimeout
	case channels.ErrCodeConnection, channels.ErrCodeUnavailable:
		toolErrType = agent.ToolErrorNetwork
	case channels.ErrCodeAuthentication:
		toolErrType = agent.ToolErrorPermission
	case channels.ErrCodeInvalidInput, channels.ErrCodeConfig:
		toolErrType = agent.ToolErrorInvalidInput
	case channels.ErrCodeNotFound:
		toolErrType = agent.ToolErrorNotFound
	default:
		toolErrType = agent.ToolErrorExecution
	}

	toolErr := agent.NewToolError(toolName, err)
	toolErr.ToolCallID = toolCallID
	return toolErr.WithType(toolErrType)
}

// Registry tracks connectors by name for dispatch from a tool body.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds a connector, replacing any prior registration with the
// same name.
func (r *Registry) Register(c Connector) {
	r.connectors[c.Name()] = c
}

// Get looks up a connector by name.
func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.connectors[name]
	return c, ok
}

// HealthCheckAll runs a health check against every registered connector,
// bounded by the given per-check timeout.
func (r *Registry) HealthCheckAll(ctx context.Context, timeout time.Duration) map[string]channels.HealthStatus {
	out := make(map[string]channels.HealthStatus, len(r.connectors))
	for name, c := range r.connectors {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		out[name] = c.HealthCheck(checkCtx)
		cancel()
	}
	return out
}
