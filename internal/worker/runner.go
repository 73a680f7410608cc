// Package worker implements one-shot agent execution with full on-disk
// artifact capture: each run gets its own worker directory (see
// internal/artifact), a fresh thread, and a single turn of the agent
// turn engine, followed by a best-effort summarisation pass.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/artifact"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	defaultSummaryTimeout     = 5 * time.Second
	defaultSummaryMaxTokens   = 50
	fallbackSummaryTruncation = 150
	noResultPlaceholder       = "(No result generated)"
)

// LoopFactory builds a fresh agentic loop scoped to ag's model, system
// instructions, and tool allow-list. Supplied by the composition root so
// this package stays independent of provider/registry wiring.
type LoopFactory func(ag *models.Agent) (*agent.AgenticLoop, error)

// Summarizer produces a short summary of a worker's result text.
type Summarizer interface {
	Summarize(ctx context.Context, resultText string) (summary string, model string, err error)
}

// Config tunes Runner behavior.
type Config struct {
	DefaultWorkerModel        string
	DefaultWorkerInstructions string
	SummaryTimeout            time.Duration
}

func (c Config) withDefaults() Config {
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = defaultSummaryTimeout
	}
	if c.DefaultWorkerInstructions == "" {
		c.DefaultWorkerInstructions = "You are a disposable worker agent. Complete the assigned task and report the result concisely."
	}
	return c
}

// Runner executes worker tasks against an artifact.Store.
type Runner struct {
	store      *artifact.Store
	sessions   sessions.Store
	newLoop    LoopFactory
	summarizer Summarizer
	config     Config
}

// NewRunner constructs a Runner. summarizer may be nil, in which case
// UpdateSummary falls back straight to result truncation.
func NewRunner(store *artifact.Store, sessionStore sessions.Store, newLoop LoopFactory, summarizer Summarizer, config Config) *Runner {
	return &Runner{
		store:      store,
		sessions:   sessionStore,
		newLoop:    newLoop,
		summarizer: summarizer,
		config:     config.withDefaults(),
	}
}

// Result is the outcome of RunWorker.
type Result struct {
	WorkerID   string
	Status     artifact.Status
	Result     string
	Summary    string
	Error      string
	DurationMS int64
}

// RunWorker executes the ten-step worker lifecycle: create the artifact
// directory, start it, resolve or synthesize an agent, run one turn
// under timeout, capture every message and tool output, save the
// result, mark the worker terminal, then summarize.
func (r *Runner) RunWorker(ctx context.Context, task string, ag *models.Agent, config map[string]any, timeout time.Duration) (*Result, error) {
	if config == nil {
		config = map[string]any{}
	}
	ownerID, _ := config["owner_id"].(string)
	if ownerID == "" && ag != nil {
		ownerID = ag.OwnerID
		config["owner_id"] = ownerID
	}

	workerID, err := r.store.CreateWorker(ctx, task, config)
	if err != nil {
		return nil, fmt.Errorf("create worker: %w", err)
	}
	if err := r.store.StartWorker(ctx, workerID); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	tempAgent := ag == nil
	if tempAgent {
		ag = r.buildTempAgent(ownerID)
	}

	// A temporary agent only ever lives in memory for this call, so there
	// is nothing persisted elsewhere that cleanup needs to delete.
	result, runErr := r.execute(ctx, workerID, task, ag, timeout)
	if runErr != nil {
		_ = r.store.CompleteWorker(ctx, workerID, artifact.StatusFailed, runErr.Error())
		return &Result{WorkerID: workerID, Status: artifact.StatusFailed, Error: runErr.Error()}, nil
	}
	return result, nil
}

func (r *Runner) buildTempAgent(ownerID string) *models.Agent {
	model := r.config.DefaultWorkerModel
	return &models.Agent{
		ID:                "temp-" + uuid.NewString(),
		OwnerID:           ownerID,
		Name:              "worker",
		Model:             model,
		SystemInstruction: r.config.DefaultWorkerInstructions,
		Status:            models.AgentStatusIdle,
	}
}

func (r *Runner) execute(ctx context.Context, workerID, task string, ag *models.Agent, timeout time.Duration) (*Result, error) {
	thread := &models.Thread{
		ID:        uuid.NewString(),
		AgentID:   ag.ID,
		Type:      models.ThreadManual,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.sessions.Create(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	userMsg := &models.Message{
		ID:       uuid.NewString(),
		ThreadID: thread.ID,
		Role:     models.RoleUser,
		Content:  task,
		SentAt:   time.Now().UTC(),
	}

	loop, err := r.newLoop(ag)
	if err != nil {
		return nil, fmt.Errorf("build agent loop: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	chunks, err := loop.Run(runCtx, thread, userMsg)
	if err != nil {
		return nil, err
	}

	toolSeq := 0
	for chunk := range chunks {
		if chunk.Error != nil {
			if runCtx.Err() != nil {
				return nil, fmt.Errorf("worker timed out after %s", timeout)
			}
			return nil, chunk.Error
		}
		if chunk.ToolEvent != nil && chunk.ToolEvent.Stage == models.ToolEventSucceeded {
			toolSeq++
			if err := r.store.SaveToolOutput(ctx, workerID, chunk.ToolEvent.ToolName, chunk.ToolEvent.Output, toolSeq); err != nil {
				return nil, fmt.Errorf("save tool output: %w", err)
			}
		}
	}
	duration := time.Since(start)

	history, err := r.sessions.GetHistory(ctx, thread.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("read thread history: %w", err)
	}
	for _, msg := range history {
		if err := r.store.SaveMessage(ctx, workerID, msg); err != nil {
			return nil, fmt.Errorf("persist message: %w", err)
		}
	}

	resultText := lastNonEmptyAssistantContent(history)
	if err := r.store.SaveResult(ctx, workerID, resultText); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	if err := r.store.CompleteWorker(ctx, workerID, artifact.StatusSuccess, ""); err != nil {
		return nil, fmt.Errorf("complete worker: %w", err)
	}

	summary, summaryMeta := r.summarize(ctx, resultText)
	if err := r.store.UpdateSummary(ctx, workerID, summary, summaryMeta); err != nil {
		return nil, fmt.Errorf("update summary: %w", err)
	}

	return &Result{
		WorkerID:   workerID,
		Status:     artifact.StatusSuccess,
		Result:     resultText,
		Summary:    summary,
		DurationMS: duration.Milliseconds(),
	}, nil
}

func (r *Runner) summarize(ctx context.Context, resultText string) (string, map[string]any) {
	meta := map[string]any{
		"version":      1,
		"generated_at": time.Now().UTC(),
	}
	if r.summarizer == nil {
		meta["error"] = "no summarizer configured"
		return truncate(resultText, fallbackSummaryTruncation), meta
	}

	sumCtx, cancel := context.WithTimeout(ctx, r.config.SummaryTimeout)
	defer cancel()

	summary, model, err := r.summarizer.Summarize(sumCtx, resultText)
	if err != nil {
		meta["error"] = err.Error()
		return truncate(resultText, fallbackSummaryTruncation), meta
	}
	meta["model"] = model
	return summary, meta
}

func lastNonEmptyAssistantContent(history []*models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role == models.RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
	}
	return noResultPlaceholder
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
