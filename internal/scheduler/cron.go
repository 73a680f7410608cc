package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/nexus/internal/workflow"
	"github.com/haasonsaas/nexus/pkg/models"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronDispatcher polls a workflow.Store for TriggerTypeCron triggers and
// reserves+starts an execution on each one's own schedule. It holds no
// state beyond what's needed to avoid re-firing a trigger within the same
// tick window; the authoritative due-time check is always a fresh parse of
// the trigger's own cron expression against the last time it fired.
type CronDispatcher struct {
	store    workflow.Store
	engine   *workflow.Engine
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	lastFire map[string]time.Time
}

// NewCronDispatcher returns a dispatcher that checks for due cron triggers
// every interval. A non-positive interval defaults to one minute, matching
// the coarsest granularity robfig/cron/v3 schedules support.
func NewCronDispatcher(store workflow.Store, engine *workflow.Engine, logger *slog.Logger, interval time.Duration) *CronDispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronDispatcher{
		store:    store,
		engine:   engine,
		logger:   logger,
		interval: interval,
		lastFire: make(map[string]time.Time),
	}
}

// Run blocks, firing due cron triggers on each tick, until ctx is cancelled.
func (d *CronDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *CronDispatcher) tick(ctx context.Context) {
	triggers, err := d.store.ListTriggersByType(ctx, models.TriggerTypeCron)
	if err != nil {
		d.logger.Error("list cron triggers", "error", err)
		return
	}

	now := time.Now()
	for _, t := range triggers {
		due, err := d.isDue(t, now)
		if err != nil {
			d.logger.Warn("invalid cron trigger", "trigger_id", t.ID, "error", err)
			continue
		}
		if !due {
			continue
		}
		// Reserve+Start runs the workflow to completion; fire it off the
		// tick goroutine so one slow execution can't delay the next poll.
		go d.fire(ctx, t, now)
	}
}

// isDue reports whether t's cron expression has a scheduled run at or
// before now that hasn't already fired this tick cycle.
func (d *CronDispatcher) isDue(t *models.Trigger, now time.Time) (bool, error) {
	expr, _ := t.Config["expression"].(string)
	if expr == "" {
		return false, fmt.Errorf("trigger %s: config.expression is required for a cron trigger", t.ID)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return false, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	d.mu.Lock()
	last, seen := d.lastFire[t.ID]
	d.mu.Unlock()
	if !seen {
		last = now.Add(-d.interval)
	}

	next := schedule.Next(last)
	return !next.IsZero() && !next.After(now), nil
}

func (d *CronDispatcher) fire(ctx context.Context, t *models.Trigger, now time.Time) {
	d.mu.Lock()
	d.lastFire[t.ID] = now
	d.mu.Unlock()

	wf, err := d.store.GetWorkflow(ctx, t.WorkflowID)
	if err != nil {
		d.logger.Error("fire cron trigger: load workflow", "trigger_id", t.ID, "workflow_id", t.WorkflowID, "error", err)
		return
	}

	exec, err := d.engine.Reserve(ctx, wf)
	if err != nil {
		d.logger.Error("fire cron trigger: reserve execution", "trigger_id", t.ID, "workflow_id", t.WorkflowID, "error", err)
		return
	}

	if _, err := d.engine.Start(ctx, exec.ID); err != nil {
		d.logger.Error("fire cron trigger: start execution", "trigger_id", t.ID, "execution_id", exec.ID, "error", err)
	}
}
