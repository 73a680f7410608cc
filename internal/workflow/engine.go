package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/corerr"
	"github.com/haasonsaas/nexus/internal/eventbus"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Engine runs a compiled Graph under a waiting/running/finished phase
// machine at both the execution and per-node granularity, mirroring the
// pending/running/terminal shape internal/tasks uses for scheduled task
// executions. Cancellation is cooperative: before starting each new node,
// the engine re-reads the execution row from the Store, so a cancellation
// recorded by another caller takes effect at the next node boundary rather
// than requiring a context tied 1:1 to the run.
type Engine struct {
	store     Store
	executors Executors
	bus       *eventbus.Bus
	logger    *slog.Logger
}

// NewEngine builds an Engine. bus may be nil, in which case node/execution
// events are simply not published.
func NewEngine(store Store, executors Executors, bus *eventbus.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, executors: executors, bus: bus, logger: logger}
}

// Reserve creates a new WorkflowExecution in PhaseWaiting for wf, one
// NodeExecutionState per node also in PhaseWaiting. It does not start
// running the graph; call Start with the returned id to do that. Splitting
// reservation from start lets a caller durably record that a run was
// admitted before committing to execute it, and makes a duplicate Start
// call for the same execution id a no-op rather than a second run.
func (e *Engine) Reserve(ctx context.Context, wf *models.Workflow) (*models.WorkflowExecution, error) {
	g, err := Build(wf)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindInvalid, "compile workflow graph", err)
	}

	nodes := make(map[string]*models.NodeExecutionState, len(g.Nodes()))
	for _, n := range g.Nodes() {
		nodes[n.ID] = &models.NodeExecutionState{NodeID: n.ID, Phase: models.PhaseWaiting}
	}

	exec := &models.WorkflowExecution{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		OwnerID:    wf.OwnerID,
		Phase:      models.PhaseWaiting,
		Nodes:      nodes,
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return nil, corerr.Wrap(corerr.KindInternal, "persist workflow execution", err)
	}
	return exec, nil
}

// Start runs a reserved execution to completion (or until cancelled). If
// the execution has already left PhaseWaiting - because a previous Start
// call is in flight or has already finished it - Start returns the
// execution's current state without running anything again.
func (e *Engine) Start(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindNotFound, "load workflow execution", err)
	}
	if exec.Phase != models.PhaseWaiting {
		return exec, nil
	}

	wf, err := e.store.GetWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindNotFound, "load workflow", err)
	}
	g, err := Build(wf)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindInvalid, "compile workflow graph", err)
	}

	now := time.Now()
	exec.Phase = models.PhaseRunning
	exec.StartedAt = &now
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return nil, corerr.Wrap(corerr.KindInternal, "mark workflow execution running", err)
	}

	outputs := make(map[string]models.Envelope, len(g.Nodes()))

	for _, nodeID := range g.Order() {
		current, err := e.store.GetExecution(ctx, executionID)
		if err != nil {
			return nil, corerr.Wrap(corerr.KindInternal, "reload workflow execution", err)
		}
		if current.Phase == models.PhaseFinished {
			// Cancelled (or otherwise finished) out from under us between
			// nodes; stop advancing the graph and report what's there.
			return current, nil
		}

		node := g.Node(nodeID)
		if !e.shouldRun(g, nodeID, outputs) {
			e.skipNode(ctx, exec, node)
			continue
		}

		env, err := e.runNode(ctx, node, outputs)
		if err != nil {
			return e.finish(ctx, exec, models.ResultFailure, err.Error())
		}
		outputs[nodeID] = env
		e.recordNode(ctx, exec, node.ID, env)

		if env.Meta.Result == models.ResultFailure {
			return e.finish(ctx, exec, models.ResultFailure, env.Meta.ErrorMessage)
		}
	}

	return e.finish(ctx, exec, models.ResultSuccess, "")
}

// Cancel marks a running execution's phase as finished/cancelled. The
// engine notices at the next node boundary (see Start's re-read loop) and
// stops; any node already in flight runs to completion.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return corerr.Wrap(corerr.KindNotFound, "load workflow execution", err)
	}
	if exec.Finished() {
		return nil
	}
	_, err = e.finish(ctx, exec, models.ResultCancelled, "cancelled")
	return err
}

// shouldRun reports whether nodeID's predecessors (if any are conditional)
// select it. A node with no conditional predecessor always runs; a node
// reached only through a conditional's "true"/"false" edge runs only if
// that branch matches the condition's outcome.
func (e *Engine) shouldRun(g *Graph, nodeID string, outputs map[string]models.Envelope) bool {
	in := g.InEdges(nodeID)
	if len(in) == 0 {
		return true
	}
	for _, edge := range in {
		if edge.Branch == "" {
			return true
		}
		srcEnv, ok := outputs[edge.Source]
		if !ok {
			continue
		}
		m, ok := srcEnv.Value.(map[string]any)
		if !ok {
			continue
		}
		if branch, _ := m["branch"].(string); branch == edge.Branch {
			return true
		}
	}
	return false
}

func (e *Engine) runNode(ctx context.Context, node *models.Node, outputs map[string]models.Envelope) (models.Envelope, error) {
	executor := e.executors.For(node.Type)
	if executor == nil {
		return models.Envelope{}, fmt.Errorf("no executor registered for node type %q", node.Type)
	}
	resolver := NewResolver(outputs, e.logger)
	return executor.Execute(ctx, node, resolver)
}

func (e *Engine) recordNode(ctx context.Context, exec *models.WorkflowExecution, nodeID string, env models.Envelope) {
	now := time.Now()
	state := exec.Nodes[nodeID]
	if state == nil {
		state = &models.NodeExecutionState{NodeID: nodeID}
		exec.Nodes[nodeID] = state
	}
	state.Phase = models.PhaseFinished
	state.Result = env.Meta.Result
	envCopy := env
	state.Output = &envCopy
	state.FinishedAt = &now
	if state.StartedAt == nil {
		state.StartedAt = &now
	} else {
		state.DurationMs = now.Sub(*state.StartedAt).Milliseconds()
	}

	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("workflow: failed to persist node state", "execution_id", exec.ID, "node_id", nodeID, "error", err)
	}
	e.publish(ctx, eventbus.TypeNodeState, exec.ID, map[string]any{
		"execution_id": exec.ID,
		"node_id":      nodeID,
		"phase":        state.Phase,
		"result":       state.Result,
	})
}

func (e *Engine) skipNode(ctx context.Context, exec *models.WorkflowExecution, node *models.Node) {
	state := exec.Nodes[node.ID]
	if state == nil {
		state = &models.NodeExecutionState{NodeID: node.ID}
		exec.Nodes[node.ID] = state
	}
	state.Phase = models.PhaseFinished
	state.Result = models.ResultSuccess
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("workflow: failed to persist skipped node state", "execution_id", exec.ID, "node_id", node.ID, "error", err)
	}
}

func (e *Engine) finish(ctx context.Context, exec *models.WorkflowExecution, result models.ExecutionResult, errMsg string) (*models.WorkflowExecution, error) {
	now := time.Now()
	exec.Phase = models.PhaseFinished
	exec.Result = result
	exec.Error = errMsg
	exec.FinishedAt = &now
	if exec.StartedAt != nil {
		exec.DurationMs = now.Sub(*exec.StartedAt).Milliseconds()
	}
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return nil, corerr.Wrap(corerr.KindInternal, "persist finished workflow execution", err)
	}
	e.publish(ctx, eventbus.TypeExecFinished, exec.ID, map[string]any{
		"execution_id": exec.ID,
		"workflow_id":  exec.WorkflowID,
		"result":       exec.Result,
		"error":        exec.Error,
	})
	return exec, nil
}

func (e *Engine) publish(ctx context.Context, typ eventbus.Type, topic string, data any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, eventbus.New(typ, topic, data))
}
