package sessions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestMemoryLoggerAppend(t *testing.T) {
	dir := t.TempDir()
	logger := NewMemoryLogger(dir)

	ts := time.Date(2026, 1, 21, 12, 0, 1, 0, time.UTC)
	msg := &models.Message{
		ThreadID: "thread-1",
		Role:     models.RoleUser,
		Content:  "hello\nworld",
		SentAt:   ts,
	}

	if err := logger.Append(msg); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	path := filepath.Join(dir, "2026-01-21.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	text := string(data)
	if !strings.Contains(text, "user") {
		t.Fatalf("expected log to contain role, got %q", text)
	}
	if !strings.Contains(text, "thread-1") {
		t.Fatalf("expected thread id in log, got %q", text)
	}
	if !strings.Contains(text, "hello world") {
		t.Fatalf("expected flattened content, got %q", text)
	}
}

func TestMemoryLoggerReadRecent(t *testing.T) {
	dir := t.TempDir()
	logger := NewMemoryLogger(dir)

	now := time.Date(2026, 1, 21, 12, 0, 1, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		msg := &models.Message{
			ThreadID: "thread-1",
			Role:     models.RoleUser,
			Content:  content,
			SentAt:   now.Add(time.Duration(i) * time.Minute),
		}
		if err := logger.Append(msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	other := &models.Message{
		ThreadID: "thread-2",
		Role:     models.RoleUser,
		Content:  "unrelated",
		SentAt:   now,
	}
	if err := logger.Append(other); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	lines, err := logger.ReadRecentAt(now, "thread-1", 1, 10)
	if err != nil {
		t.Fatalf("ReadRecentAt() error = %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines for thread-1, got %d: %v", len(lines), lines)
	}
	for _, l := range lines {
		if !strings.Contains(l, "thread-1") {
			t.Fatalf("unexpected line for other thread: %q", l)
		}
	}
}
