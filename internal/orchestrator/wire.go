// Package orchestrator wires the core's independently-built pieces
// (workflow engine, tool runtime, agent turn engine, event bus) into the
// dependency shapes each expects of the others, the way cmd/orchestratord's
// predecessor wired channel adapters and LLM providers into AgenticLoop: a
// thin adapter layer, not a reimplementation of either side.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

// toolRegistryInvoker adapts agent.ToolRegistry to workflow.ToolInvoker.
type toolRegistryInvoker struct {
	registry *agent.ToolRegistry
}

// NewToolInvoker wraps a tool registry for use as a workflow tool node's
// executor. A nil registry is valid; every invocation then fails with a
// "not found" style error from ToolRegistry.Execute itself.
func NewToolInvoker(registry *agent.ToolRegistry) *toolRegistryInvoker {
	return &toolRegistryInvoker{registry: registry}
}

func (t *toolRegistryInvoker) InvokeTool(ctx context.Context, name string, params map[string]any) (string, bool, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", false, fmt.Errorf("marshal tool params: %w", err)
	}
	result, err := t.registry.Execute(ctx, name, raw)
	if err != nil {
		return "", false, err
	}
	return result.Content, result.IsError, nil
}

// agentRuntimeRunner adapts agent.AgenticRuntime to workflow.AgentTurnRunner.
// Each RunTurn call opens a fresh scheduled thread for agentID (one per
// agent, reused across calls via sessions.Store.GetOrCreateSingleton) and
// posts input as a single user message, draining the runtime's streamed
// response into one reply string and a tool-call count.
type agentRuntimeRunner struct {
	runtime *agent.AgenticRuntime
	threads sessions.Store
}

// NewAgentTurnRunner wraps an AgenticRuntime and the thread store it
// appends to for use as a workflow agent node's executor.
func NewAgentTurnRunner(runtime *agent.AgenticRuntime, threads sessions.Store) *agentRuntimeRunner {
	return &agentRuntimeRunner{runtime: runtime, threads: threads}
}

func (a *agentRuntimeRunner) RunTurn(ctx context.Context, agentID, input string) (string, int, error) {
	thread, err := a.threads.GetOrCreateSingleton(ctx, agentID, models.ThreadScheduled)
	if err != nil {
		return "", 0, fmt.Errorf("open agent thread: %w", err)
	}

	msg := &models.Message{
		ID:       uuid.NewString(),
		ThreadID: thread.ID,
		Role:     models.RoleUser,
		Content:  input,
	}

	chunks, err := a.runtime.Process(ctx, thread, msg)
	if err != nil {
		return "", 0, fmt.Errorf("run agent turn: %w", err)
	}

	var reply string
	toolCalls := 0
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", toolCalls, chunk.Error
		}
		reply += chunk.Text
		if chunk.ToolResult != nil {
			toolCalls++
		}
	}
	return reply, toolCalls, nil
}
