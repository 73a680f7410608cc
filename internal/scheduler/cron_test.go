package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/workflow"
	"github.com/haasonsaas/nexus/pkg/models"
)

type noopInvoker struct{}

func (noopInvoker) InvokeTool(ctx context.Context, name string, params map[string]any) (string, bool, error) {
	return "ok", false, nil
}

type noopRunner struct{}

func (noopRunner) RunTurn(ctx context.Context, agentID, input string) (string, int, error) {
	return "ok", 0, nil
}

func newTestDispatcher(t *testing.T) (*CronDispatcher, workflow.Store, *models.Workflow) {
	t.Helper()
	store := workflow.NewMemoryStore()
	engine := workflow.NewEngine(store, workflow.NewExecutors(noopInvoker{}, noopRunner{}), nil, nil)
	dispatcher := NewCronDispatcher(store, engine, nil, time.Minute)

	wf := &models.Workflow{
		ID: "wf1",
		Nodes: []models.Node{
			{ID: "trigger", Type: models.NodeTrigger, Data: map[string]any{"trigger_type": "cron"}},
		},
	}
	if err := store.CreateWorkflow(context.Background(), wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return dispatcher, store, wf
}

func TestCronDispatcher_RejectsTriggerWithoutExpression(t *testing.T) {
	d, store, wf := newTestDispatcher(t)
	trig := &models.Trigger{ID: "t1", WorkflowID: wf.ID, Type: models.TriggerTypeCron}
	if err := store.CreateTrigger(context.Background(), trig); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := d.isDue(trig, time.Now()); err == nil {
		t.Fatal("expected an error for a cron trigger missing config.expression")
	}
}

func TestCronDispatcher_FiresDueTrigger(t *testing.T) {
	d, store, wf := newTestDispatcher(t)
	trig := &models.Trigger{
		ID:         "t1",
		WorkflowID: wf.ID,
		Type:       models.TriggerTypeCron,
		Config:     map[string]any{"expression": "* * * * * *"},
	}
	if err := store.CreateTrigger(context.Background(), trig); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	due, err := d.isDue(trig, time.Now())
	if err != nil {
		t.Fatalf("isDue: %v", err)
	}
	if !due {
		t.Fatal("expected an every-second trigger to be due")
	}

	d.fire(context.Background(), trig, time.Now())

	execs, err := store.ListExecutions(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected one execution to have been reserved and started, got %d", len(execs))
	}
	if execs[0].Phase != models.PhaseFinished {
		t.Fatalf("expected the fired execution to finish, got phase=%q", execs[0].Phase)
	}
}

func TestCronDispatcher_RejectsInvalidExpression(t *testing.T) {
	d, store, wf := newTestDispatcher(t)
	trig := &models.Trigger{
		ID:         "t1",
		WorkflowID: wf.ID,
		Type:       models.TriggerTypeCron,
		Config:     map[string]any{"expression": "not a cron expression"},
	}
	if err := store.CreateTrigger(context.Background(), trig); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := d.isDue(trig, time.Now()); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}
