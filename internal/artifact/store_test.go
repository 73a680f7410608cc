package artifact

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestCreateWorker_WritesMetadataAndIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorker(ctx, "Summarize the inbox", map[string]any{"owner_id": "u1"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty worker id")
	}

	meta, err := s.GetMetadata(ctx, id, "u1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Status != StatusCreated {
		t.Errorf("Status = %q, want created", meta.Status)
	}
	if meta.Task != "Summarize the inbox" {
		t.Errorf("Task = %q", meta.Task)
	}

	list, err := s.ListWorkers(ctx, 10, ListWorkersFilter{}, "u1")
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(list) != 1 || list[0].WorkerID != id {
		t.Fatalf("expected worker in index, got %+v", list)
	}
}

func TestCreateWorker_OwnerIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorker(ctx, "User A Task", map[string]any{"owner_id": "userA"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	list, err := s.ListWorkers(ctx, 10, ListWorkersFilter{}, "userB")
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected user B to see no workers, got %+v", list)
	}

	_, err = s.GetMetadata(ctx, id, "userB")
	if !IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestFullWorkerLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorker(ctx, "run a report", map[string]any{"owner_id": "u1"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	if err := s.StartWorker(ctx, id); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}
	if err := s.SaveToolOutput(ctx, id, "search", "found 3 results", 1); err != nil {
		t.Fatalf("SaveToolOutput: %v", err)
	}
	msg := &models.Message{ID: "m1", ThreadID: id, Role: models.RoleAssistant, Content: "done", SentAt: time.Now()}
	if err := s.SaveMessage(ctx, id, msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := s.SaveResult(ctx, id, "the report is attached"); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.CompleteWorker(ctx, id, StatusSuccess, ""); err != nil {
		t.Fatalf("CompleteWorker: %v", err)
	}
	if err := s.UpdateSummary(ctx, id, "produced a report", map[string]any{"tokens": 42}); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	meta, err := s.GetMetadata(ctx, id, "u1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", meta.Status)
	}
	if meta.FinishedAt == nil {
		t.Error("expected FinishedAt to be set")
	}
	if meta.Summary != "produced a report" {
		t.Errorf("Summary = %q", meta.Summary)
	}

	result, err := s.GetResult(ctx, id)
	if err != nil || result != "the report is attached" {
		t.Errorf("GetResult = %q, %v", result, err)
	}

	data, err := s.ReadWorkerFile(ctx, id, filepath.Join(toolCallsDir, "001_search.txt"))
	if err != nil {
		t.Fatalf("ReadWorkerFile: %v", err)
	}
	if string(data) != "found 3 results" {
		t.Errorf("tool output = %q", data)
	}

	data, err = s.ReadWorkerFile(ctx, id, metadataFile)
	if err != nil {
		t.Fatalf("ReadWorkerFile(metadata.json): %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty metadata.json content")
	}
}

func TestReadWorkerFile_RejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateWorker(ctx, "task", map[string]any{"owner_id": "u1"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	cases := []string{
		"../../../etc/passwd",
		"/etc/passwd",
		"tool_calls/../../../etc/passwd",
	}
	for _, rel := range cases {
		if _, err := s.ReadWorkerFile(ctx, id, rel); err == nil {
			t.Errorf("ReadWorkerFile(%q) succeeded, want InvalidPath error", rel)
		} else if ae, ok := err.(*Error); !ok || ae.Code != ErrCodeInvalidPath {
			t.Errorf("ReadWorkerFile(%q) = %v, want InvalidPath", rel, err)
		}
	}
}

func TestReadWorkerFile_SucceedsOnCreatedWorker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateWorker(ctx, "task", map[string]any{"owner_id": "u1"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	if _, err := s.ReadWorkerFile(ctx, id, metadataFile); err != nil {
		t.Fatalf("expected read of metadata.json on a created-but-not-started worker to succeed, got %v", err)
	}
}

func TestListWorkers_FiltersStatusAndSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, _ := s.CreateWorker(ctx, "first", map[string]any{"owner_id": "u1"})
	time.Sleep(2 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	id2, _ := s.CreateWorker(ctx, "second", map[string]any{"owner_id": "u1"})
	_ = s.CompleteWorker(ctx, id2, StatusFailed, "boom")

	list, err := s.ListWorkers(ctx, 10, ListWorkersFilter{Since: &cutoff}, "u1")
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(list) != 1 || list[0].WorkerID != id2 {
		t.Fatalf("expected only id2 since cutoff, got %+v", list)
	}

	failed := StatusFailed
	list, err = s.ListWorkers(ctx, 10, ListWorkersFilter{Status: &failed}, "u1")
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(list) != 1 || list[0].WorkerID != id2 {
		t.Fatalf("expected only failed worker, got %+v", list)
	}

	_ = id1
}

func TestSearchWorkers_FindsMatchingLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorker(ctx, "task", map[string]any{"owner_id": "u1"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	if err := s.SaveResult(ctx, id, "line one\nerror: disk full\nline three"); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	hits, err := s.SearchWorkers(ctx, `error:`, resultFile, nil, "u1")
	if err != nil {
		t.Fatalf("SearchWorkers: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}
	if hits[0].WorkerID != id || hits[0].Line != 2 {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}

func TestGetResult_NotFoundWhenMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateWorker(ctx, "task", map[string]any{"owner_id": "u1"})

	_, err := s.GetResult(ctx, id)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateWorker_GeneratesUniqueIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id, err := s.CreateWorker(ctx, "same task name", map[string]any{"owner_id": "u1"})
		if err != nil {
			t.Fatalf("CreateWorker: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate worker id %q", id)
		}
		seen[id] = true
		time.Sleep(time.Millisecond)
	}
}
