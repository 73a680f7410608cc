package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Store persists workflows, their executions, and their triggers. Satisfied
// by a database-backed implementation in production; MemoryStore is the
// test double and development fallback.
type Store interface {
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context, ownerID string) ([]*models.Workflow, error)

	CreateExecution(ctx context.Context, exec *models.WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	UpdateExecution(ctx context.Context, exec *models.WorkflowExecution) error
	ListExecutions(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)

	CreateTrigger(ctx context.Context, t *models.Trigger) error
	GetTrigger(ctx context.Context, id string) (*models.Trigger, error)
	UpdateTrigger(ctx context.Context, t *models.Trigger) error
	DeleteTrigger(ctx context.Context, id string) error
	ListTriggersByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error)
	ListTriggersByType(ctx context.Context, typ models.TriggerType) ([]*models.Trigger, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu         sync.RWMutex
	workflows  map[string]*models.Workflow
	executions map[string]*models.WorkflowExecution
	triggers   map[string]*models.Trigger
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:  make(map[string]*models.Workflow),
		executions: make(map[string]*models.WorkflowExecution),
		triggers:   make(map[string]*models.Trigger),
	}
}

func (m *MemoryStore) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wf
	m.workflows[wf.ID] = &cp
	return nil
}

func (m *MemoryStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	cp := *wf
	return &cp, nil
}

func (m *MemoryStore) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[wf.ID]; !ok {
		return fmt.Errorf("workflow %s not found", wf.ID)
	}
	cp := *wf
	m.workflows[wf.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteWorkflow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, id)
	return nil
}

func (m *MemoryStore) ListWorkflows(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Workflow
	for _, wf := range m.workflows {
		if ownerID == "" || wf.OwnerID == ownerID {
			cp := *wf
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.executions[exec.ID]; exists {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	cp := *exec
	m.executions[exec.ID] = &cp
	return nil
}

func (m *MemoryStore) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exec, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	cp := *exec
	return &cp, nil
}

func (m *MemoryStore) UpdateExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.executions[exec.ID]; !ok {
		return fmt.Errorf("execution %s not found", exec.ID)
	}
	cp := *exec
	m.executions[exec.ID] = &cp
	return nil
}

func (m *MemoryStore) ListExecutions(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.WorkflowExecution
	for _, e := range m.executions {
		if e.WorkflowID == workflowID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateTrigger(ctx context.Context, t *models.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.triggers[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTrigger(ctx context.Context, id string) (*models.Trigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.triggers[id]
	if !ok {
		return nil, fmt.Errorf("trigger %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) UpdateTrigger(ctx context.Context, t *models.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggers[t.ID]; !ok {
		return fmt.Errorf("trigger %s not found", t.ID)
	}
	cp := *t
	m.triggers[t.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteTrigger(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.triggers, id)
	return nil
}

func (m *MemoryStore) ListTriggersByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trigger
	for _, t := range m.triggers {
		if t.WorkflowID == workflowID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListTriggersByType(ctx context.Context, typ models.TriggerType) ([]*models.Trigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trigger
	for _, t := range m.triggers {
		if t.Type == typ {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
