package credctx

import (
	"context"
	"database/sql"
	"encoding/json"
)

// Store looks up raw credential rows, scoped either to a single agent or to
// the whole account. It is satisfied directly by *sql.DB against the two
// credential tables the precedence rule reads from.
type Store interface {
	AgentCredential(ctx context.Context, agentID, connectorType string) (map[string]string, error)
	AccountCredential(ctx context.Context, ownerID, connectorType string) (map[string]string, error)
}

// DBStore implements Store against a SQL database with one row per
// (scope, connector_type), the credential payload stored as a JSON object.
type DBStore struct {
	db *sql.DB
}

// NewDBStore returns a Store backed by db.
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db}
}

// AgentCredential reads the agent-scoped credential for connectorType, or
// nil if none is configured.
func (s *DBStore) AgentCredential(ctx context.Context, agentID, connectorType string) (map[string]string, error) {
	return s.query(ctx, `
		SELECT data FROM agent_credentials
		WHERE agent_id = $1 AND connector_type = $2
	`, agentID, connectorType)
}

// AccountCredential reads the account-scoped credential for connectorType,
// or nil if none is configured.
func (s *DBStore) AccountCredential(ctx context.Context, ownerID, connectorType string) (map[string]string, error) {
	return s.query(ctx, `
		SELECT data FROM account_credentials
		WHERE owner_id = $1 AND connector_type = $2
	`, ownerID, connectorType)
}

func (s *DBStore) query(ctx context.Context, q string, args ...any) (map[string]string, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ScopedResolver implements Resolver with agent-scoped credentials taking
// precedence over account-scoped ones.
type ScopedResolver struct {
	store   Store
	ownerID string
	agentID string
}

// NewScopedResolver returns a Resolver for one turn's (ownerID, agentID)
// pair.
func NewScopedResolver(store Store, ownerID, agentID string) *ScopedResolver {
	return &ScopedResolver{store: store, ownerID: ownerID, agentID: agentID}
}

// Get resolves connectorType, preferring an agent-scoped credential over an
// account-scoped one, and returns nil if neither is configured.
func (r *ScopedResolver) Get(ctx context.Context, connectorType string) (*Credential, error) {
	if r.agentID != "" {
		data, err := r.store.AgentCredential(ctx, r.agentID, connectorType)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return &Credential{ConnectorType: connectorType, Data: data}, nil
		}
	}

	data, err := r.store.AccountCredential(ctx, r.ownerID, connectorType)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return &Credential{ConnectorType: connectorType, Data: data}, nil
}

// StaticResolver is an in-memory Resolver for tests and worker-local
// credential overrides.
type StaticResolver map[string]map[string]string

// Get returns the configured credential for connectorType, or nil.
func (r StaticResolver) Get(ctx context.Context, connectorType string) (*Credential, error) {
	data, ok := r[connectorType]
	if !ok {
		return nil, nil
	}
	return &Credential{ConnectorType: connectorType, Data: data}, nil
}
