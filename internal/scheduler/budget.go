package scheduler

import (
	"sync"

	"github.com/haasonsaas/nexus/internal/usage"
)

// CostBudget caps the estimated dollar spend a single user may incur per
// UTC day, using usage.Cost.Estimate for the estimate a caller supplies
// up front and Record for the actual figure once a run completes.
type CostBudget struct {
	mu       sync.Mutex
	limitUSD float64
	day      string
	spentUSD map[string]float64
}

// NewCostBudget returns a CostBudget capping spend at limitUSD per user per
// day. A non-positive limitUSD disables the budget.
func NewCostBudget(limitUSD float64) *CostBudget {
	return &CostBudget{
		limitUSD: limitUSD,
		day:      currentDay(),
		spentUSD: make(map[string]float64),
	}
}

// Allow reports whether userID has enough remaining budget to cover
// estimatedUSD; it does not reserve the amount. Call Record once the run's
// actual cost is known.
func (b *CostBudget) Allow(userID string, estimatedUSD float64) bool {
	if b.limitUSD <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()

	return b.spentUSD[userID]+estimatedUSD <= b.limitUSD
}

// Record adds actualUSD to userID's running total for the day.
func (b *CostBudget) Record(userID string, actualUSD float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	b.spentUSD[userID] += actualUSD
}

// Remaining reports userID's remaining budget in USD for today.
func (b *CostBudget) Remaining(userID string) float64 {
	if b.limitUSD <= 0 {
		return -1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()

	remaining := b.limitUSD - b.spentUSD[userID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (b *CostBudget) rolloverLocked() {
	today := currentDay()
	if today != b.day {
		b.day = today
		b.spentUSD = make(map[string]float64)
	}
}

// EstimateCost is a thin convenience wrapper over usage.Cost.Estimate so
// callers building a budget check don't need to import both packages.
func EstimateCost(cost *usage.Cost, u *usage.Usage) float64 {
	return cost.Estimate(u)
}
