package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/types"
)

// StoreType selects the storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// StoreConfig configures a DecisionStore.
type StoreConfig struct {
	// Type is the storage backend type.
	Type StoreType `json:"type" yaml:"type"`

	// Redis configuration, used when Type is "redis".
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// Path is the SQLite database file, used when Type is "sqlite".
	// ":memory:" gives an ephemeral store.
	Path string `json:"path" yaml:"path"`
}

// RedisStoreConfig contains Redis-specific settings.
type RedisStoreConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	Password     string `json:"password" yaml:"password"`
	DB           int    `json:"db" yaml:"db"`
	PoolSize     int    `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `json:"min_idle_conns" yaml:"min_idle_conns"`

	// KeyPrefix namespaces all keys; defaults to "boardflow:".
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// TTL bounds how long archived decisions stay readable. Zero keeps
	// them indefinitely.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "boardflow:",
		},
		Path: "boardflow.db",
	}
}

// DecisionFilter narrows List results. Zero values match everything.
type DecisionFilter struct {
	ProposalID    string
	Outcome       deliberation.Outcome
	DecidedAfter  *time.Time
	DecidedBefore *time.Time

	// Limit and Offset paginate the result set, newest first.
	Limit  int
	Offset int
}

func (f DecisionFilter) matches(d *deliberation.Decision) bool {
	if f.ProposalID != "" && d.ProposalID != f.ProposalID {
		return false
	}
	if f.Outcome != "" && d.Outcome != f.Outcome {
		return false
	}
	if f.DecidedAfter != nil && d.DecidedAt.Before(*f.DecidedAfter) {
		return false
	}
	if f.DecidedBefore != nil && d.DecidedAt.After(*f.DecidedBefore) {
		return false
	}
	return true
}

// paginate applies offset and limit to a newest-first slice.
func (f DecisionFilter) paginate(decisions []*deliberation.Decision) []*deliberation.Decision {
	if f.Offset > 0 {
		if f.Offset >= len(decisions) {
			return []*deliberation.Decision{}
		}
		decisions = decisions[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(decisions) {
		decisions = decisions[:f.Limit]
	}
	return decisions
}

// DecisionStore archives completed deliberation decisions.
type DecisionStore interface {
	// Save persists a decision, keyed by its session ID.
	Save(ctx context.Context, decision *deliberation.Decision) error

	// Get retrieves a decision by session ID. Returns a NOT_FOUND error
	// when no decision exists for the session.
	Get(ctx context.Context, sessionID string) (*deliberation.Decision, error)

	// List retrieves decisions matching the filter, newest first.
	List(ctx context.Context, filter DecisionFilter) ([]*deliberation.Decision, error)

	// Delete removes a decision from the archive.
	Delete(ctx context.Context, sessionID string) error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close releases resources. The store is unusable afterwards.
	Close() error
}

// NewDecisionStore creates a DecisionStore for the configured backend.
func NewDecisionStore(cfg StoreConfig) (DecisionStore, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryDecisionStore(), nil
	case StoreTypeRedis:
		return NewRedisDecisionStore(cfg.Redis)
	case StoreTypeSQLite:
		return NewSQLiteDecisionStore(cfg.Path)
	default:
		return nil, types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("unsupported decision store type: %s", cfg.Type))
	}
}

func errStoreClosed() error {
	return types.NewError(types.ErrStoreClosed, "decision store is closed")
}

func errNotFound(sessionID string) error {
	return types.NewError(types.ErrNotFound,
		fmt.Sprintf("no decision for session %s", sessionID))
}
