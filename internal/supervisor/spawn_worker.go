package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/artifact"
	"github.com/haasonsaas/nexus/internal/eventbus"
	"github.com/haasonsaas/nexus/internal/jobs"
	"github.com/haasonsaas/nexus/internal/worker"
	"github.com/haasonsaas/nexus/pkg/models"
)

// WorkerQueue queues a worker task and returns its job id immediately,
// running the work in the background. It is implemented by
// AsyncWorkerQueue for production use and can be faked in tests.
type WorkerQueue interface {
	Enqueue(ctx context.Context, ownerID, task string, config map[string]any) (jobID string, err error)
}

// workerRunner is the subset of *worker.Runner the queue needs. internal/worker
// never imports this package, so depending on its concrete Result type
// directly is safe and avoids a duplicate, easy-to-drift result shape.
type workerRunner interface {
	RunWorker(ctx context.Context, task string, ag *models.Agent, config map[string]any, timeout time.Duration) (*worker.Result, error)
}

// AsyncWorkerQueue runs each enqueued task on its own tracked goroutine and
// records its queued/running/terminal state in a jobs.Store row, so a
// supervisor tool call can return a job id without blocking on the work.
type AsyncWorkerQueue struct {
	runner  workerRunner
	jobs    jobs.Store
	tracker *eventbus.Tracker
	timeout time.Duration
	logger  *slog.Logger
}

// NewAsyncWorkerQueue constructs an AsyncWorkerQueue. timeout bounds each
// worker run; zero means no bound.
func NewAsyncWorkerQueue(runner workerRunner, jobStore jobs.Store, tracker *eventbus.Tracker, timeout time.Duration, logger *slog.Logger) *AsyncWorkerQueue {
	if logger == nil {
		logger = slog.Default().With("component", "worker_queue")
	}
	return &AsyncWorkerQueue{runner: runner, jobs: jobStore, tracker: tracker, timeout: timeout, logger: logger}
}

// Enqueue creates a queued job row and starts the worker run on a tracked
// background goroutine, returning the job id without waiting for it.
func (q *AsyncWorkerQueue) Enqueue(ctx context.Context, ownerID, task string, config map[string]any) (string, error) {
	job := &jobs.Job{
		ID:        jobID(),
		ToolName:  "spawn_worker",
		Status:    jobs.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create worker job: %w", err)
	}

	if config == nil {
		config = map[string]any{}
	}
	config["owner_id"] = ownerID

	q.tracker.Go(func() {
		runCtx := context.Background()
		job.Status = jobs.StatusRunning
		job.StartedAt = time.Now().UTC()
		_ = q.jobs.Update(runCtx, job)

		result, err := q.runner.RunWorker(runCtx, task, nil, config, q.timeout)
		job.FinishedAt = time.Now().UTC()
		switch {
		case err != nil:
			job.Status = jobs.StatusFailed
			job.Error = err.Error()
		case result.Status != artifact.StatusSuccess:
			job.Status = jobs.StatusFailed
			job.Error = result.Error
		default:
			job.Status = jobs.StatusSucceeded
			job.Result = &models.ToolResult{Content: result.Result}
		}
		if updateErr := q.jobs.Update(runCtx, job); updateErr != nil {
			q.logger.Error("failed to persist worker job outcome", "job_id", job.ID, "error", updateErr)
		}
	})

	return job.ID, nil
}

func jobID() string {
	return "worker-" + time.Now().UTC().Format("20060102T150405.000000000Z")
}

// SpawnWorkerInput is the tool's parameter shape.
type SpawnWorkerInput struct {
	Task   string         `json:"task"`
	Config map[string]any `json:"config,omitempty"`
}

// SpawnWorkerTool is the supervisor-invoked tool that queues a worker job
// attributed to the supervisor's owner and returns immediately.
type SpawnWorkerTool struct {
	queue   WorkerQueue
	ownerID string
}

// NewSpawnWorkerTool binds a tool instance to one owner; a fresh instance
// is built per supervisor run since each run is scoped to one owner.
func NewSpawnWorkerTool(queue WorkerQueue, ownerID string) *SpawnWorkerTool {
	return &SpawnWorkerTool{queue: queue, ownerID: ownerID}
}

func (t *SpawnWorkerTool) Name() string { return "spawn_worker" }
func (t *SpawnWorkerTool) Description() string {
	return "Queues a background worker to perform a task and returns immediately with a job id. Never blocks this conversation."
}
func (t *SpawnWorkerTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task": {"type": "string", "description": "The task for the worker to perform."}
		},
		"required": ["task"]
	}`)
}

func (t *SpawnWorkerTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in SpawnWorkerInput
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
	}
	if in.Task == "" {
		return &agent.ToolResult{Content: "task is required", IsError: true}, nil
	}

	id, err := t.queue.Enqueue(ctx, t.ownerID, in.Task, in.Config)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("failed to queue worker: %v", err), IsError: true}, nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf(`{"job_id": %q, "status": "queued"}`, id)}, nil
}
