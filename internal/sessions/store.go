package sessions

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Store is the interface for thread persistence: creating/loading Threads and
// appending to their Message log.
type Store interface {
	// Thread CRUD
	Create(ctx context.Context, thread *models.Thread) error
	Get(ctx context.Context, id string) (*models.Thread, error)
	Update(ctx context.Context, thread *models.Thread) error
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Thread, error)

	// GetOrCreateSingleton returns the one thread of the given type owned by
	// agentID, creating it if absent. Used for the supervisor thread (type
	// ThreadSuper) and other per-agent singleton threads.
	GetOrCreateSingleton(ctx context.Context, agentID string, typ models.ThreadType) (*models.Thread, error)

	// Message history. AppendMessage assigns msg.Seq as the next monotonic
	// sequence number for threadID if msg.Seq is zero.
	AppendMessage(ctx context.Context, threadID string, msg *models.Message) error
	GetHistory(ctx context.Context, threadID string, limit int) ([]*models.Message, error)
}

// ListOptions configures thread listing.
type ListOptions struct {
	Type   models.ThreadType
	Limit  int
	Offset int
}
