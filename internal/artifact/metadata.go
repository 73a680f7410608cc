package artifact

import "time"

// Status is a worker's lifecycle phase.
type Status string

const (
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Metadata is one worker's metadata.json, and also the shape stored (one
// per worker) in index.json for cheap listing.
type Metadata struct {
	WorkerID    string         `json:"worker_id"`
	Task        string         `json:"task"`
	Config      map[string]any `json:"config,omitempty"`
	OwnerID     string         `json:"owner_id"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Error       string         `json:"error,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	SummaryMeta map[string]any `json:"summary_meta,omitempty"`
}

func (m *Metadata) terminal() bool {
	return m.Status == StatusSuccess || m.Status == StatusFailed
}

// SearchHit is one match returned by Store.SearchWorkers.
type SearchHit struct {
	WorkerID string `json:"worker_id"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Content  string `json:"content"`
}
