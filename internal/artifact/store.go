// Package artifact implements the on-disk, content-addressed record of
// every worker execution: one directory per worker holding its metadata,
// message log, tool-call outputs, and final result, plus an owner-filtered
// index.json at the store root for cheap listing and search.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	metadataFile = "metadata.json"
	threadFile   = "thread.jsonl"
	resultFile   = "result.txt"
	toolCallsDir = "tool_calls"
	indexFile    = "index.json"
	noResultText = "(No result generated)"

	workerIDTaskSlugLen = 30
)

// Store is a concurrent-safe artifact store rooted at one directory.
// Multiple Store handles opened on the same root within one process
// cooperate through idxMu; per-worker files are written only by the
// turn that owns that worker, so no cross-worker write contention
// exists and reads never take a lock.
type Store struct {
	root  string
	idxMu sync.Mutex
}

// NewStore opens (creating if absent) an artifact store rooted at root.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) workerDir(id string) string {
	return filepath.Join(s.root, id)
}

// CreateWorker generates a worker id, lays down its directory skeleton,
// writes the initial metadata.json (status=created), and appends it to
// the index. config must carry "owner_id". Colliding ids (vanishingly
// rare given the timestamp+random suffix) fail with ErrCodeConflict
// rather than silently overwriting an existing worker.
func (s *Store) CreateWorker(ctx context.Context, task string, config map[string]any) (string, error) {
	ownerID, _ := config["owner_id"].(string)
	id := generateWorkerID(task)
	dir := s.workerDir(id)

	if _, err := os.Stat(dir); err == nil {
		return "", errConflict(fmt.Sprintf("worker %q already exists", id))
	}
	if err := os.MkdirAll(filepath.Join(dir, toolCallsDir), 0o755); err != nil {
		return "", fmt.Errorf("create worker directory: %w", err)
	}

	meta := &Metadata{
		WorkerID:  id,
		Task:      task,
		Config:    config,
		OwnerID:   ownerID,
		Status:    StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.writeMetadata(id, meta); err != nil {
		return "", err
	}
	if err := s.upsertIndex(meta); err != nil {
		return "", err
	}
	return id, nil
}

// StartWorker transitions a worker from created to running and stamps
// started_at.
func (s *Store) StartWorker(ctx context.Context, id string) error {
	meta, err := s.readMetadata(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	meta.Status = StatusRunning
	meta.StartedAt = &now
	if err := s.writeMetadata(id, meta); err != nil {
		return err
	}
	return s.upsertIndex(meta)
}

// SaveToolOutput writes one tool call's output to
// tool_calls/<NNN>_<tool>.txt. sequence is caller-supplied and monotonic
// per worker.
func (s *Store) SaveToolOutput(ctx context.Context, id, toolName, content string, sequence int) error {
	dir := s.workerDir(id)
	name := fmt.Sprintf("%03d_%s.txt", sequence, sanitizeFilenamePart(toolName))
	return os.WriteFile(filepath.Join(dir, toolCallsDir, name), []byte(content), 0o644)
}

// SaveMessage appends one JSON-encoded message line to thread.jsonl.
// Callers are responsible for serializing concurrent appends from a
// single worker; the file is opened append-only so writes are never
// truncated.
func (s *Store) SaveMessage(ctx context.Context, id string, msg *models.Message) error {
	f, err := os.OpenFile(filepath.Join(s.workerDir(id), threadFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// SaveResult writes (overwriting) result.txt.
func (s *Store) SaveResult(ctx context.Context, id, text string) error {
	if strings.TrimSpace(text) == "" {
		text = noResultText
	}
	return os.WriteFile(filepath.Join(s.workerDir(id), resultFile), []byte(text), 0o644)
}

// CompleteWorker transitions the worker to a terminal status, stamping
// finished_at and duration_ms, and persisting error when status is
// StatusFailed.
func (s *Store) CompleteWorker(ctx context.Context, id string, status Status, errMsg string) error {
	meta, err := s.readMetadata(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	meta.Status = status
	meta.FinishedAt = &now
	if meta.StartedAt != nil {
		meta.DurationMS = now.Sub(*meta.StartedAt).Milliseconds()
	}
	if status == StatusFailed {
		meta.Error = errMsg
	}
	if err := s.writeMetadata(id, meta); err != nil {
		return err
	}
	return s.upsertIndex(meta)
}

// UpdateSummary writes a worker's summary after its terminal transition,
// so the summary LLM call never delays the terminal status write.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string, meta map[string]any) error {
	m, err := s.readMetadata(id)
	if err != nil {
		return err
	}
	m.Summary = summary
	m.SummaryMeta = meta
	if err := s.writeMetadata(id, m); err != nil {
		return err
	}
	return s.upsertIndex(m)
}

// GetMetadata reads a worker's metadata.json, enforcing ownership.
func (s *Store) GetMetadata(ctx context.Context, id, ownerID string) (*Metadata, error) {
	meta, err := s.readMetadata(id)
	if err != nil {
		return nil, err
	}
	if meta.OwnerID != ownerID {
		return nil, errPermissionDenied(fmt.Sprintf("worker %q is not owned by %q", id, ownerID))
	}
	return meta, nil
}

// GetResult reads result.txt.
func (s *Store) GetResult(ctx context.Context, id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.workerDir(id), resultFile))
	if os.IsNotExist(err) {
		return "", errNotFound(fmt.Sprintf("worker %q has no result", id))
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadWorkerFile reads an arbitrary file inside the worker directory,
// rejecting any relPath that escapes the worker root once normalized —
// including via ".." segments, absolute paths, or a symlink that
// resolves outside.
func (s *Store) ReadWorkerFile(ctx context.Context, id, relPath string) ([]byte, error) {
	dir := s.workerDir(id)
	if filepath.IsAbs(relPath) {
		return nil, errInvalidPath(fmt.Sprintf("path %q must be relative", relPath))
	}
	joined := filepath.Join(dir, relPath)
	cleanDir := filepath.Clean(dir)
	if joined != cleanDir && !strings.HasPrefix(joined, cleanDir+string(filepath.Separator)) {
		return nil, errInvalidPath(fmt.Sprintf("path %q escapes worker root", relPath))
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err == nil {
		resolvedDir, dirErr := filepath.EvalSymlinks(cleanDir)
		if dirErr == nil && resolved != resolvedDir && !strings.HasPrefix(resolved, resolvedDir+string(filepath.Separator)) {
			return nil, errInvalidPath(fmt.Sprintf("path %q resolves outside worker root", relPath))
		}
	}

	data, err := os.ReadFile(joined)
	if os.IsNotExist(err) {
		return nil, errNotFound(fmt.Sprintf("file %q not found in worker %q", relPath, id))
	}
	return data, err
}

// ListWorkersFilter narrows ListWorkers.
type ListWorkersFilter struct {
	Status *Status
	Since  *time.Time
}

// ListWorkers reads the index, filters by owner then by status and
// since, sorts by created_at descending, and caps to limit.
func (s *Store) ListWorkers(ctx context.Context, limit int, filter ListWorkersFilter, ownerID string) ([]*Metadata, error) {
	entries, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	out := make([]*Metadata, 0, len(entries))
	for _, e := range entries {
		if e.OwnerID != ownerID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchWorkers scans text files matching fileGlob across owner-visible
// workers (optionally narrowed to workerIDs) for lines matching regex.
func (s *Store) SearchWorkers(ctx context.Context, pattern, fileGlob string, workerIDs []string, ownerID string) ([]SearchHit, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid search pattern: %w", err)
	}

	entries, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	allowed := map[string]struct{}{}
	if len(workerIDs) > 0 {
		for _, id := range workerIDs {
			allowed[id] = struct{}{}
		}
	}

	var hits []SearchHit
	for _, e := range entries {
		if e.OwnerID != ownerID {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[e.WorkerID]; !ok {
				continue
			}
		}
		workerHits, err := s.searchWorkerFiles(e.WorkerID, re, fileGlob)
		if err != nil {
			continue
		}
		hits = append(hits, workerHits...)
	}
	return hits, nil
}

func (s *Store) searchWorkerFiles(id string, re *regexp.Regexp, fileGlob string) ([]SearchHit, error) {
	dir := s.workerDir(id)
	var hits []SearchHit
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		if fileGlob != "" {
			matched, err := filepath.Match(fileGlob, filepath.Base(path))
			if err != nil || !matched {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				hits = append(hits, SearchHit{WorkerID: id, File: rel, Line: i + 1, Content: line})
			}
		}
		return nil
	})
	return hits, err
}

func (s *Store) readMetadata(id string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.workerDir(id), metadataFile))
	if os.IsNotExist(err) {
		return nil, errNotFound(fmt.Sprintf("worker %q not found", id))
	}
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) writeMetadata(id string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.workerDir(id), metadataFile), data, 0o644)
}

func (s *Store) loadIndex() ([]*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.root, indexFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []*Metadata
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// upsertIndex rewrites index.json with meta inserted or replacing any
// existing row for the same worker id, under idxMu so concurrent
// completions from different workers never interleave their writes.
func (s *Store) upsertIndex(meta *Metadata) error {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	entries, err := s.loadIndex()
	if err != nil {
		return err
	}
	replaced := false
	for i, e := range entries {
		if e.WorkerID == meta.WorkerID {
			entries[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, meta)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.root, indexFile+".tmp."+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.root, indexFile))
}

func generateWorkerID(task string) string {
	ts := time.Now().UTC().Format("20060102T150405.000Z")
	return fmt.Sprintf("%s_%s", ts, slugify(task, workerIDTaskSlugLen))
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string, maxLen int) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "task"
	}
	if len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}
	return slug
}

var filenamePartRe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

func sanitizeFilenamePart(s string) string {
	return filenamePartRe.ReplaceAllString(s, "_")
}
