package scheduler

import (
	"sync"
	"time"
)

// DailyQuota caps the number of runs a single user may start per UTC day.
// Unlike a token bucket, usage never drains back down during the day - it
// resets hard at midnight, matching a "N runs per day" allowance rather
// than a steady-state rate.
type DailyQuota struct {
	mu     sync.Mutex
	limit  int
	day    string
	counts map[string]int
}

// NewDailyQuota returns a DailyQuota allowing limit runs per user per day.
// A non-positive limit disables the quota (Allow always returns true).
func NewDailyQuota(limit int) *DailyQuota {
	return &DailyQuota{
		limit:  limit,
		day:    currentDay(),
		counts: make(map[string]int),
	}
}

// Allow reports whether userID has remaining quota for today and, if so,
// consumes one unit of it.
func (q *DailyQuota) Allow(userID string) bool {
	if q.limit <= 0 {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.rolloverLocked()

	if q.counts[userID] >= q.limit {
		return false
	}
	q.counts[userID]++
	return true
}

// Remaining reports how many runs userID has left today.
func (q *DailyQuota) Remaining(userID string) int {
	if q.limit <= 0 {
		return -1
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.rolloverLocked()

	remaining := q.limit - q.counts[userID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (q *DailyQuota) rolloverLocked() {
	today := currentDay()
	if today != q.day {
		q.day = today
		q.counts = make(map[string]int)
	}
}

func currentDay() string {
	return time.Now().UTC().Format("2006-01-02")
}
