package scheduler

import (
	"context"
	"errors"

	"github.com/haasonsaas/nexus/internal/corerr"
)

// ErrKillSwitchEngaged is returned by Guard.Admit while the kill switch is
// engaged.
var ErrKillSwitchEngaged = errors.New("kill switch engaged: new runs are blocked")

// ErrQuotaExceeded is returned by Guard.Admit once a user has used up their
// daily run quota.
var ErrQuotaExceeded = errors.New("daily run quota exceeded")

// ErrBudgetExceeded is returned by Guard.Admit when starting the run would
// push a user's estimated daily spend over their cost budget.
var ErrBudgetExceeded = errors.New("daily cost budget exceeded")

// Guard is the single admission check a run goes through before it starts:
// kill switch, then quota, then cost budget, then the per-agent advisory
// lock. Any zero-value field disables that particular check.
type Guard struct {
	Lock   AgentLocker
	Quota  *DailyQuota
	Budget *CostBudget
	Kill   *KillSwitch
}

// Admit runs every configured guard in order and, if all pass, acquires
// the agent lock. On success it returns a release func that must be
// called exactly once when the run finishes (success or failure) to free
// the agent lock for the next run.
func (g *Guard) Admit(ctx context.Context, agentID, userID string, estimatedCostUSD float64) (release func() error, err error) {
	if g.Kill != nil && g.Kill.Engaged() {
		return nil, ErrKillSwitchEngaged
	}
	if g.Quota != nil && !g.Quota.Allow(userID) {
		return nil, ErrQuotaExceeded
	}
	if g.Budget != nil && !g.Budget.Allow(userID, estimatedCostUSD) {
		return nil, ErrBudgetExceeded
	}
	if g.Lock == nil {
		return func() error { return nil }, nil
	}

	rel, ok, err := g.Lock.TryAcquire(ctx, agentID)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUnavailable, "acquire agent lock", err)
	}
	if !ok {
		return nil, ErrAgentBusy
	}
	return rel, nil
}
