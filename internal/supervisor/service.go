package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/eventbus"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

const defaultSupervisorModel = "claude-sonnet-4-5"

// LoopFactory builds the agentic loop used to run one supervisor turn.
// Mirrors internal/worker's factory so the supervisor stays independent of
// provider/registry wiring.
type LoopFactory func(ag *models.Agent) (*agent.AgenticLoop, error)

// Config tunes Service behavior.
type Config struct {
	SupervisorModel string
	TurnTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.SupervisorModel == "" {
		c.SupervisorModel = defaultSupervisorModel
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 2 * time.Minute
	}
	return c
}

// Service implements the supervisor service: one long-lived agent+thread
// per owner, dispatching turns and emitting lifecycle events.
type Service struct {
	agents   AgentStore
	sessions sessions.Store
	queue    WorkerQueue
	bus      *eventbus.Bus
	newLoop  LoopFactory
	config   Config
}

// NewService constructs a Service. queue may be nil if spawn_worker is not
// needed by the caller (e.g. tests that only exercise GetOrCreate*).
func NewService(agents AgentStore, sessionStore sessions.Store, queue WorkerQueue, bus *eventbus.Bus, newLoop LoopFactory, config Config) *Service {
	return &Service{
		agents:   agents,
		sessions: sessionStore,
		queue:    queue,
		bus:      bus,
		newLoop:  newLoop,
		config:   config.withDefaults(),
	}
}

// GetOrCreateSupervisorThread returns the owner's single ThreadSuper
// thread for the given agent, creating it if absent. This thread
// accumulates context across every supervisor call the owner makes.
func (s *Service) GetOrCreateSupervisorThread(ctx context.Context, ag *models.Agent) (*models.Thread, error) {
	return s.sessions.GetOrCreateSingleton(ctx, ag.ID, models.ThreadSuper)
}

// Result is the outcome of one RunSupervisor call.
type Result struct {
	RunID      string
	ThreadID   string
	Status     string
	Result     string
	DurationMS int64
}

const (
	runStatusSuccess = "success"
	runStatusError   = "error"
)

// RunSupervisor executes one supervisor turn for ownerID: it reuses (or
// creates) the owner's supervisor agent and thread, appends task as a user
// message, runs one turn under timeout, and emits SUPERVISOR_STARTED /
// SUPERVISOR_COMPLETE through the event bus.
func (s *Service) RunSupervisor(ctx context.Context, ownerID, task string, owner OwnerContext, runID string) (*Result, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	ag, err := s.GetOrCreateSupervisorAgent(ctx, ownerID, owner)
	if err != nil {
		return nil, fmt.Errorf("get or create supervisor agent: %w", err)
	}
	thread, err := s.GetOrCreateSupervisorThread(ctx, ag)
	if err != nil {
		return nil, fmt.Errorf("get or create supervisor thread: %w", err)
	}

	topic := "user:" + ownerID
	s.publish(ctx, eventbus.TypeSupervisorStart, topic, map[string]any{
		"run_id": runID, "thread_id": thread.ID,
	})

	// loop.Run persists this as the thread's next message itself; callers
	// never append it up front.
	userMsg := &models.Message{
		ID:       uuid.NewString(),
		ThreadID: thread.ID,
		Role:     models.RoleUser,
		Content:  task,
		SentAt:   time.Now().UTC(),
	}

	loop, err := s.newLoop(ag)
	if err != nil {
		s.publishError(ctx, topic, runID, thread.ID, err)
		return nil, fmt.Errorf("build supervisor loop: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.TurnTimeout)
	defer cancel()

	start := time.Now()
	chunks, err := loop.Run(runCtx, thread, userMsg)
	if err != nil {
		s.publishError(ctx, topic, runID, thread.ID, err)
		return nil, err
	}

	var runErr error
	for chunk := range chunks {
		if chunk.Error != nil {
			runErr = chunk.Error
		}
	}
	duration := time.Since(start)

	if runErr != nil {
		s.publishError(ctx, topic, runID, thread.ID, runErr)
		return &Result{RunID: runID, ThreadID: thread.ID, Status: runStatusError, DurationMS: duration.Milliseconds()}, nil
	}

	history, err := s.sessions.GetHistory(ctx, thread.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("read thread history: %w", err)
	}
	result := lastNonEmptyAssistantContent(history)

	s.publish(ctx, eventbus.TypeSupervisorDone, topic, map[string]any{
		"run_id":      runID,
		"thread_id":   thread.ID,
		"status":      runStatusSuccess,
		"result":      result,
		"duration_ms": duration.Milliseconds(),
	})

	return &Result{
		RunID:      runID,
		ThreadID:   thread.ID,
		Status:     runStatusSuccess,
		Result:     result,
		DurationMS: duration.Milliseconds(),
	}, nil
}

func (s *Service) publish(ctx context.Context, typ eventbus.Type, topic string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, eventbus.New(typ, topic, data))
}

func (s *Service) publishError(ctx context.Context, topic, runID, threadID string, err error) {
	s.publish(ctx, eventbus.TypeError, topic, map[string]any{
		"run_id": runID, "thread_id": threadID, "status": runStatusError, "error": err.Error(),
	})
}

func lastNonEmptyAssistantContent(history []*models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role == models.RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
	}
	return ""
}
