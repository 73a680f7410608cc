// Package supervisor maintains the single long-lived agent + thread pair
// each owner gets and drives one turn of it per call, queuing any worker
// delegation as a fire-and-forget background job.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/pkg/models"
)

const supervisorAgentName = "supervisor"

var defaultAllowedTools = []string{
	"spawn_worker",
	"list_workers",
	"read_worker_result",
	"read_worker_file",
	"grep_workers",
	"get_worker_metadata",
}

// AgentStore persists agent definitions. Satisfied by a database-backed
// implementation in production; MemoryAgentStore is the test double.
type AgentStore interface {
	Create(ctx context.Context, ag *models.Agent) error
	Update(ctx context.Context, ag *models.Agent) error
	Get(ctx context.Context, id string) (*models.Agent, error)
	// FindSupervisor returns the owner's supervisor agent, or nil, nil if
	// none has been created yet.
	FindSupervisor(ctx context.Context, ownerID string) (*models.Agent, error)
}

// OwnerContext supplies the per-owner details the supervisor's system
// prompt is composed from at creation time.
type OwnerContext struct {
	DisplayName       string
	Servers           []string
	Integrations      []string
	CustomInstruction string
}

// GetOrCreateSupervisorAgent returns the owner's unique supervisor agent,
// creating it (with config.is_supervisor=true and the fixed worker
// management tool allow-list) if none exists yet.
func (s *Service) GetOrCreateSupervisorAgent(ctx context.Context, ownerID string, owner OwnerContext) (*models.Agent, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("owner id is required")
	}

	existing, err := s.agents.FindSupervisor(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("find supervisor agent: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	ag := &models.Agent{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		Name:              supervisorAgentName,
		Model:             s.config.SupervisorModel,
		SystemInstruction: composeSupervisorPrompt(owner),
		AllowedTools:      append([]string(nil), defaultAllowedTools...),
		Config:            map[string]any{"is_supervisor": true},
		Status:            models.AgentStatusIdle,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.agents.Create(ctx, ag); err != nil {
		return nil, fmt.Errorf("create supervisor agent: %w", err)
	}
	return ag, nil
}

// composeSupervisorPrompt builds the static template + per-owner context
// the supervisor's system prompt is formatted from at creation time.
func composeSupervisorPrompt(owner OwnerContext) string {
	var sb strings.Builder
	sb.WriteString("You are the supervisor agent for this account. ")
	sb.WriteString("You handle requests directly when you can, and delegate long-running or ")
	sb.WriteString("exploratory work to disposable worker agents via the `spawn_worker` tool rather ")
	sb.WriteString("than blocking this conversation on it.\n\n")
	sb.WriteString("### Worker Management\n\n")
	sb.WriteString("- `spawn_worker` queues a task and returns immediately with a job id; it never blocks.\n")
	sb.WriteString("- `list_workers`, `get_worker_metadata`, `read_worker_result`, and `read_worker_file` ")
	sb.WriteString("let you check on and read back a worker's progress and output.\n")
	sb.WriteString("- `grep_workers` searches across past worker output for a pattern.\n")

	if owner.DisplayName != "" {
		fmt.Fprintf(&sb, "\n### User\n\nYou are assisting %s.\n", owner.DisplayName)
	}
	if len(owner.Servers) > 0 {
		fmt.Fprintf(&sb, "\n### Connected Servers\n\n%s\n", strings.Join(owner.Servers, ", "))
	}
	if len(owner.Integrations) > 0 {
		fmt.Fprintf(&sb, "\n### Integrations\n\n%s\n", strings.Join(owner.Integrations, ", "))
	}
	if owner.CustomInstruction != "" {
		fmt.Fprintf(&sb, "\n### Additional Instructions\n\n%s\n", owner.CustomInstruction)
	}
	return sb.String()
}

// MemoryAgentStore is an in-memory AgentStore, used in tests and as a
// development fallback.
type MemoryAgentStore struct {
	mu     sync.RWMutex
	agents map[string]*models.Agent
}

// NewMemoryAgentStore returns an empty MemoryAgentStore.
func NewMemoryAgentStore() *MemoryAgentStore {
	return &MemoryAgentStore{agents: make(map[string]*models.Agent)}
}

func (m *MemoryAgentStore) Create(ctx context.Context, ag *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ag
	m.agents[ag.ID] = &cp
	return nil
}

func (m *MemoryAgentStore) Update(ctx context.Context, ag *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[ag.ID]; !ok {
		return fmt.Errorf("agent %s not found", ag.ID)
	}
	cp := *ag
	m.agents[ag.ID] = &cp
	return nil
}

func (m *MemoryAgentStore) Get(ctx context.Context, id string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ag, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	cp := *ag
	return &cp, nil
}

func (m *MemoryAgentStore) FindSupervisor(ctx context.Context, ownerID string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ag := range m.agents {
		if ag.OwnerID == ownerID && ag.IsSupervisor() {
			cp := *ag
			return &cp, nil
		}
	}
	return nil, nil
}
