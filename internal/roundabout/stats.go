package roundabout

import "sync"

// StatsSnapshot is a point-in-time copy of a job's gating call counters,
// safe to read and log without holding any lock.
type StatsSnapshot struct {
	CallsMade            int
	CallsSucceeded       int
	CallsTimedOut        int
	CallsErrored         int
	CallsSkippedBudget   int
	CallsSkippedInterval int
	TotalResponseTimeMS  int64
}

// Stats accumulates the gating call outcomes for one job across its whole
// run. Skip counters are tracked even when no LLM call is ever made, so a
// job that stays in skip state the entire time is still visible in
// activity summaries.
type Stats struct {
	mu       sync.Mutex
	snapshot StatsSnapshot
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Stats) recordSkippedInterval() {
	s.mu.Lock()
	s.snapshot.CallsSkippedInterval++
	s.mu.Unlock()
}

func (s *Stats) recordSkippedBudget() {
	s.mu.Lock()
	s.snapshot.CallsSkippedBudget++
	s.mu.Unlock()
}

func (s *Stats) recordCall(outcome callOutcome, responseTimeMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.CallsMade++
	s.snapshot.TotalResponseTimeMS += responseTimeMS
	switch outcome {
	case outcomeSucceeded:
		s.snapshot.CallsSucceeded++
	case outcomeTimedOut:
		s.snapshot.CallsTimedOut++
	case outcomeErrored:
		s.snapshot.CallsErrored++
	}
}

type callOutcome int

const (
	outcomeSucceeded callOutcome = iota
	outcomeTimedOut
	outcomeErrored
)
