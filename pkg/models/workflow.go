package models

import "time"

// NodeType is the closed set of workflow node kinds.
type NodeType string

const (
	NodeTrigger     NodeType = "trigger"
	NodeTool        NodeType = "tool"
	NodeAgent       NodeType = "agent"
	NodeConditional NodeType = "conditional"
)

// Node is one vertex in a Workflow's DAG. Positional/visual fields a canvas
// editor might carry are deliberately not modeled here; the engine only
// ever reads the typed fields below.
type Node struct {
	ID   string         `json:"id"`
	Type NodeType       `json:"type"`
	Name string         `json:"name,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Edge connects two nodes. Branch is set only on edges leaving a
// conditional node ("true" or "false"); it is empty for every other edge.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Branch string `json:"branch,omitempty"`
}

// Workflow is a user-authored DAG: trigger/tool/agent/conditional nodes
// connected by edges. The canvas is the canonical typed shape; any
// positional/visual attributes belong one layer further out, in whatever
// editor produced this document.
type Workflow struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutionPhase is the lifecycle phase shared by a WorkflowExecution and
// each of its NodeExecutionState rows.
type ExecutionPhase string

const (
	PhaseWaiting  ExecutionPhase = "waiting"
	PhaseRunning  ExecutionPhase = "running"
	PhaseFinished ExecutionPhase = "finished"
)

// ExecutionResult is set only once phase reaches PhaseFinished.
type ExecutionResult string

const (
	ResultSuccess   ExecutionResult = "success"
	ResultFailure   ExecutionResult = "failure"
	ResultCancelled ExecutionResult = "cancelled"
)

// EnvelopeMeta is the metadata half of a NodeOutputEnvelope.
type EnvelopeMeta struct {
	Phase        ExecutionPhase  `json:"phase"`
	Result       ExecutionResult `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Envelope is what every node that executes produces: a value plus its
// phase/result metadata. Downstream variable resolution reads this shape
// exclusively.
type Envelope struct {
	Value any          `json:"value"`
	Meta  EnvelopeMeta `json:"meta"`
}

// Finished reports whether this envelope's node has reached a terminal
// phase.
func (e Envelope) Finished() bool {
	return e.Meta.Phase == PhaseFinished
}

// NodeExecutionState is one node's row within a WorkflowExecution: its own
// phase/result state machine plus the output envelope the engine stores on
// it once the node runs.
type NodeExecutionState struct {
	NodeID     string         `json:"node_id"`
	Phase      ExecutionPhase `json:"phase"`
	Result     ExecutionResult `json:"result,omitempty"`
	Output     *Envelope      `json:"output,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
}

// WorkflowExecution is one run of a Workflow. Once Phase reaches
// PhaseFinished, Result is set and both timestamps are frozen; nothing
// about a finished execution changes afterward.
type WorkflowExecution struct {
	ID         string                         `json:"id"`
	WorkflowID string                         `json:"workflow_id"`
	OwnerID    string                         `json:"owner_id"`
	Phase      ExecutionPhase                 `json:"phase"`
	Result     ExecutionResult                `json:"result,omitempty"`
	Nodes      map[string]*NodeExecutionState `json:"nodes"`
	StartedAt  *time.Time                     `json:"started_at,omitempty"`
	FinishedAt *time.Time                     `json:"finished_at,omitempty"`
	DurationMs int64                          `json:"duration_ms,omitempty"`
	Error      string                         `json:"error,omitempty"`
}

// Finished reports whether the execution has reached a terminal phase.
func (e *WorkflowExecution) Finished() bool {
	return e.Phase == PhaseFinished
}

// TriggerType is the closed set of persisted trigger sources.
type TriggerType string

const (
	TriggerTypeEmail   TriggerType = "email"
	TriggerTypeWebhook TriggerType = "webhook"
	TriggerTypeCron    TriggerType = "cron"
)

// Trigger is a persisted hook that fires a workflow: an email rule, a
// webhook endpoint, or a cron schedule. HighWaterMark carries whatever a
// pollable source's resume cursor looks like (e.g. a Gmail history_id),
// opaque to everything but that source's poller.
type Trigger struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	Type           TriggerType    `json:"type"`
	Config         map[string]any `json:"config,omitempty"`
	HighWaterMark  string         `json:"high_water_mark,omitempty"`
	WatchExpiresAt *time.Time     `json:"watch_expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
