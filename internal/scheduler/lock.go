// Package scheduler enforces the run-admission guardrails around starting
// a worker or supervisor run: at most one in-flight run per agent, a daily
// per-user run quota, a global kill switch, and a per-user cost budget.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/nexus/internal/corerr"
)

// AgentLocker enforces at most one running run per agent id at any instant.
type AgentLocker interface {
	// TryAcquire attempts to take the lock for agentID without blocking. On
	// success it returns a release func that must be called to give up the
	// lock; release is always non-nil when ok is true.
	TryAcquire(ctx context.Context, agentID string) (release func() error, ok bool, err error)
}

// PGAdvisoryLocker takes the agent lock with a session-scoped Postgres
// advisory lock held for the lifetime of one transaction: the lock is
// released automatically if the holding process dies, so a crashed worker
// can never wedge an agent forever the way a row-based lease can until its
// TTL expires.
type PGAdvisoryLocker struct {
	db *sql.DB
}

// NewPGAdvisoryLocker wraps db. db must use the lib/pq driver registered by
// this package's blank import.
func NewPGAdvisoryLocker(db *sql.DB) *PGAdvisoryLocker {
	return &PGAdvisoryLocker{db: db}
}

// TryAcquire opens a transaction and attempts pg_try_advisory_xact_lock on
// the key derived from agentID. If the lock is held elsewhere it rolls the
// transaction back immediately and returns ok=false. Calling the returned
// release rolls the transaction back, releasing the lock; a plain rollback
// is safe here because the lock transaction never performs writes.
func (l *PGAdvisoryLocker) TryAcquire(ctx context.Context, agentID string) (func() error, bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, corerr.Wrap(corerr.KindUnavailable, "begin lock transaction", err)
	}

	key := lockKey(agentID)
	var acquired bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, key).Scan(&acquired); err != nil {
		_ = tx.Rollback()
		return nil, false, corerr.Wrap(corerr.KindUnavailable, "acquire advisory lock", err)
	}
	if !acquired {
		_ = tx.Rollback()
		return nil, false, nil
	}
	return tx.Rollback, true, nil
}

// lockKey folds an agent id string down to the int64 key
// pg_try_advisory_xact_lock requires.
func lockKey(agentID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(agentID))
	return int64(h.Sum64())
}

// ErrAgentBusy is returned by Guard.Admit when another run already holds
// the agent's lock.
var ErrAgentBusy = errors.New("agent already has a run in progress")
