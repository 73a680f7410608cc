package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/internal/corerr"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ToolInvoker is the narrow surface a Tool node needs from a tool registry:
// invoke one tool by name with resolved parameters. Kept separate from
// agent.ToolRegistry so this package doesn't need to import the agent
// runtime's full type vocabulary.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, name string, params map[string]any) (content string, isError bool, err error)
}

// AgentTurnRunner is the narrow surface an Agent node needs: run one turn of
// the named agent against some input text and return its final reply.
// Satisfied by a thin adapter over agent.AgenticLoop in production.
type AgentTurnRunner interface {
	RunTurn(ctx context.Context, agentID, input string) (reply string, toolCalls int, err error)
}

// NodeExecutor produces an output Envelope for one node, given the node's
// declared Data and a Resolver built from the outputs of every node that
// has already finished.
type NodeExecutor interface {
	Execute(ctx context.Context, node *models.Node, resolver *Resolver) (models.Envelope, error)
}

// Executors bundles one NodeExecutor per node type; engine.go dispatches on
// models.NodeType to pick the right one.
type Executors struct {
	Trigger     NodeExecutor
	Tool        NodeExecutor
	Agent       NodeExecutor
	Conditional NodeExecutor
}

// NewExecutors builds the standard Executors set from a tool invoker and an
// agent turn runner. Either may be nil if the deployment never runs
// workflows containing that node type; Execute returns a clear error in
// that case rather than panicking.
func NewExecutors(tools ToolInvoker, agents AgentTurnRunner) Executors {
	return Executors{
		Trigger:     triggerExecutor{},
		Tool:        toolExecutor{invoker: tools},
		Agent:       agentExecutor{runner: agents},
		Conditional: conditionalExecutor{},
	}
}

// For picks the executor for a node type, or nil if none is registered.
func (e Executors) For(t models.NodeType) NodeExecutor {
	switch t {
	case models.NodeTrigger:
		return e.Trigger
	case models.NodeTool:
		return e.Tool
	case models.NodeAgent:
		return e.Agent
	case models.NodeConditional:
		return e.Conditional
	default:
		return nil
	}
}

func success(value any) models.Envelope {
	return models.Envelope{Value: value, Meta: models.EnvelopeMeta{Phase: models.PhaseFinished, Result: models.ResultSuccess}}
}

func failure(value any, message string) models.Envelope {
	return models.Envelope{Value: value, Meta: models.EnvelopeMeta{Phase: models.PhaseFinished, Result: models.ResultFailure, ErrorMessage: message}}
}

// triggerExecutor reproduces the firing trigger's declared type/config as
// this node's output, so downstream nodes can branch on what triggered the
// run via "${trigger_node.trigger_type}".
type triggerExecutor struct{}

func (triggerExecutor) Execute(ctx context.Context, node *models.Node, resolver *Resolver) (models.Envelope, error) {
	out := map[string]any{"triggered": true}
	if tt, ok := node.Data["trigger_type"]; ok {
		out["trigger_type"] = tt
	}
	if cfg, ok := node.Data["trigger_config"]; ok {
		out["trigger_config"] = cfg
	}
	return success(out), nil
}

// toolExecutor resolves a node's static_params through the Resolver and
// invokes the named tool.
type toolExecutor struct {
	invoker ToolInvoker
}

func (e toolExecutor) Execute(ctx context.Context, node *models.Node, resolver *Resolver) (models.Envelope, error) {
	if e.invoker == nil {
		return models.Envelope{}, corerr.New(corerr.KindUnavailable, "no tool invoker configured for this deployment")
	}

	name, _ := node.Data["tool_name"].(string)
	if name == "" {
		return models.Envelope{}, corerr.New(corerr.KindInvalid, fmt.Sprintf("tool node %q has no tool_name", node.ID))
	}

	params, _ := node.Data["static_params"].(map[string]any)
	resolved, err := resolver.ResolveParams(params)
	if err != nil {
		return models.Envelope{}, corerr.Wrap(corerr.KindInvalid, "resolve tool parameters", err)
	}

	content, isError, err := e.invoker.InvokeTool(ctx, name, resolved)
	if err != nil {
		return failure(map[string]any{"tool_name": name}, err.Error()), nil
	}
	out := map[string]any{"tool_name": name, "content": content, "is_error": isError}
	if isError {
		return failure(out, content), nil
	}
	return success(out), nil
}

// agentExecutor resolves a node's input text and runs one turn of the
// named agent.
type agentExecutor struct {
	runner AgentTurnRunner
}

func (e agentExecutor) Execute(ctx context.Context, node *models.Node, resolver *Resolver) (models.Envelope, error) {
	if e.runner == nil {
		return models.Envelope{}, corerr.New(corerr.KindUnavailable, "no agent turn runner configured for this deployment")
	}

	agentID, _ := node.Data["agent_id"].(string)
	if agentID == "" {
		return models.Envelope{}, corerr.New(corerr.KindInvalid, fmt.Sprintf("agent node %q has no agent_id", node.ID))
	}

	rawInput, _ := node.Data["input"].(string)
	input, err := resolver.ResolveString(rawInput)
	if err != nil {
		return models.Envelope{}, corerr.Wrap(corerr.KindInvalid, "resolve agent input", err)
	}

	start := time.Now()
	reply, toolCalls, err := e.runner.RunTurn(ctx, agentID, input)
	if err != nil {
		return failure(map[string]any{"agent_id": agentID}, err.Error()), nil
	}
	out := map[string]any{
		"agent_id":    agentID,
		"reply":       reply,
		"tool_calls":  toolCalls,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return success(out), nil
}

// conditionalExecutor evaluates a node's condition through the sandboxed
// expression evaluator and reports which branch fired.
type conditionalExecutor struct{}

func (conditionalExecutor) Execute(ctx context.Context, node *models.Node, resolver *Resolver) (models.Envelope, error) {
	condition, _ := node.Data["condition"].(string)
	if condition == "" {
		return models.Envelope{}, corerr.New(corerr.KindInvalid, fmt.Sprintf("conditional node %q has no condition", node.ID))
	}

	result, err := EvaluateCondition(resolver, condition)
	if err != nil {
		return failure(map[string]any{"condition": condition}, err.Error()), nil
	}

	branch := "false"
	if result {
		branch = "true"
	}
	return success(map[string]any{"result": result, "branch": branch}), nil
}
