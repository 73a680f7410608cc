package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/pkg/models"
)

// maxMessagesPerThread limits messages stored per thread to prevent unbounded memory growth.
// When exceeded, old messages are trimmed to maintain the limit.
const maxMessagesPerThread = 1000

// MemoryStore provides an in-memory Store implementation for testing and local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	threads    map[string]*models.Thread
	singletons map[string]string // agentID:type -> thread id
	messages   map[string][]*models.Message
	seq        map[string]int64
}

// NewMemoryStore creates a new in-memory thread store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:    map[string]*models.Thread{},
		singletons: map[string]string{},
		messages:   map[string][]*models.Message{},
		seq:        map[string]int64{},
	}
}

func (m *MemoryStore) Create(ctx context.Context, thread *models.Thread) error {
	if thread == nil {
		return errors.New("thread is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := cloneThread(thread)
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	thread.ID = clone.ID
	thread.CreatedAt = clone.CreatedAt
	thread.UpdatedAt = clone.UpdatedAt
	m.threads[clone.ID] = clone
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	thread, ok := m.threads[id]
	if !ok {
		return nil, errors.New("thread not found")
	}
	return cloneThread(thread), nil
}

func (m *MemoryStore) Update(ctx context.Context, thread *models.Thread) error {
	if thread == nil {
		return errors.New("thread is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.threads[thread.ID]
	if !ok {
		return errors.New("thread not found")
	}
	clone := cloneThread(thread)
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	m.threads[clone.ID] = clone
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[id]; !ok {
		return errors.New("thread not found")
	}
	delete(m.threads, id)
	delete(m.messages, id)
	delete(m.seq, id)
	for k, v := range m.singletons {
		if v == id {
			delete(m.singletons, k)
		}
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Thread
	for _, thread := range m.threads {
		if agentID != "" && thread.AgentID != agentID {
			continue
		}
		if opts.Type != "" && thread.Type != opts.Type {
			continue
		}
		out = append(out, cloneThread(thread))
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	if start > len(out) {
		return []*models.Thread{}, nil
	}
	return out[start:end], nil
}

func (m *MemoryStore) GetOrCreateSingleton(ctx context.Context, agentID string, typ models.ThreadType) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agentID + ":" + string(typ)
	if id, ok := m.singletons[key]; ok {
		if thread, ok := m.threads[id]; ok {
			return cloneThread(thread), nil
		}
	}

	now := time.Now()
	thread := &models.Thread{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.threads[thread.ID] = thread
	m.singletons[key] = thread.ID
	return cloneThread(thread), nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, threadID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[threadID]; !ok {
		return errors.New("thread not found")
	}
	clone := cloneMessage(msg)
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.SentAt.IsZero() {
		clone.SentAt = time.Now()
	}
	if clone.Seq == 0 {
		m.seq[threadID]++
		clone.Seq = m.seq[threadID]
	} else if clone.Seq > m.seq[threadID] {
		m.seq[threadID] = clone.Seq
	}
	msg.ID = clone.ID
	msg.Seq = clone.Seq
	msg.SentAt = clone.SentAt
	m.messages[threadID] = append(m.messages[threadID], clone)

	// Trim old messages if limit is exceeded to prevent unbounded memory growth.
	if len(m.messages[threadID]) > maxMessagesPerThread {
		excess := len(m.messages[threadID]) - maxMessagesPerThread
		m.messages[threadID] = m.messages[threadID][excess:]
	}
	return nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, threadID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := m.messages[threadID]
	if len(messages) == 0 {
		return []*models.Message{}, nil
	}
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

// deepCloneMap creates a deep copy of a map[string]any to prevent shared references.
func deepCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = deepCloneValue(v)
	}
	return clone
}

// deepCloneValue recursively clones a value, handling nested maps and slices.
func deepCloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCloneMap(val)
	case []any:
		cloned := make([]any, len(val))
		for i, item := range val {
			cloned[i] = deepCloneValue(item)
		}
		return cloned
	case []string:
		cloned := make([]string, len(val))
		copy(cloned, val)
		return cloned
	case []int:
		cloned := make([]int, len(val))
		copy(cloned, val)
		return cloned
	case []int64:
		cloned := make([]int64, len(val))
		copy(cloned, val)
		return cloned
	case []float64:
		cloned := make([]float64, len(val))
		copy(cloned, val)
		return cloned
	case []bool:
		cloned := make([]bool, len(val))
		copy(cloned, val)
		return cloned
	default:
		return v
	}
}

func cloneThread(thread *models.Thread) *models.Thread {
	if thread == nil {
		return nil
	}
	clone := *thread
	if thread.Metadata != nil {
		clone.Metadata = deepCloneMap(thread.Metadata)
	}
	return &clone
}

func cloneMessage(msg *models.Message) *models.Message {
	if msg == nil {
		return nil
	}
	clone := *msg
	if msg.Metadata != nil {
		clone.Metadata = deepCloneMap(msg.Metadata)
	}
	if len(msg.Attachments) > 0 {
		clone.Attachments = append([]models.Attachment{}, msg.Attachments...)
	}
	if len(msg.ToolCalls) > 0 {
		clone.ToolCalls = append([]models.ToolCall{}, msg.ToolCalls...)
	}
	if len(msg.ToolResults) > 0 {
		clone.ToolResults = append([]models.ToolResult{}, msg.ToolResults...)
	}
	return &clone
}
