package sessions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/haasonsaas/nexus/pkg/models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *CockroachStore) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock, &CockroachStore{db: db}
}

func TestCockroachStore_Create(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	thread := &models.Thread{
		ID:      "thread-1",
		AgentID: "agent-1",
		Type:    models.ThreadChat,
		Title:   "Test Thread",
	}

	mock.ExpectPrepare("INSERT INTO threads")
	stmt, err := db.Prepare("INSERT INTO threads (id, agent_id, type, title, metadata, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)")
	if err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	store.stmtCreateThread = stmt

	mock.ExpectExec("INSERT INTO threads").
		WithArgs("thread-1", "agent-1", models.ThreadChat, "Test Thread", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Create(context.Background(), thread); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCockroachStore_Get(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectPrepare("SELECT (.+) FROM threads")
	stmt, err := db.Prepare("SELECT id, agent_id, type, title, metadata, created_at, updated_at FROM threads WHERE id = $1")
	if err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	store.stmtGetThread = stmt

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "agent_id", "type", "title", "metadata", "created_at", "updated_at"}).
		AddRow("thread-1", "agent-1", string(models.ThreadChat), "Test Thread", []byte(`{}`), now, now)
	mock.ExpectQuery("SELECT (.+) FROM threads").WithArgs("thread-1").WillReturnRows(rows)

	thread, err := store.Get(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if thread.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", thread.AgentID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCockroachStore_Get_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	stmt, err := db.Prepare("SELECT id, agent_id, type, title, metadata, created_at, updated_at FROM threads WHERE id = $1")
	if err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	store.stmtGetThread = stmt

	mock.ExpectQuery("SELECT (.+) FROM threads").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestCockroachStore_AppendMessage(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	appendStmt, err := db.Prepare("INSERT INTO messages (id, thread_id, branch_id, seq, parent_id, role, content, attachments, tool_calls, tool_call_id, tool_name, tool_results, metadata, sent_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)")
	if err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	store.stmtAppendMessage = appendStmt

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(seq\\), 0\\) \\+ 1").
		WithArgs("thread-1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)))
	mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE threads SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg := &models.Message{Role: models.RoleUser, Content: "hello"}
	if err := store.AppendMessage(context.Background(), "thread-1", msg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if msg.Seq != 1 {
		t.Errorf("Seq = %d, want 1", msg.Seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
