package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/boardflow/deliberation"
)

// RedisDecisionStore is a Redis-backed DecisionStore for distributed
// deployments. Decision payloads live in plain keys; sorted sets index them
// by decision time for newest-first listing.
type RedisDecisionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisDecisionStore connects to Redis and verifies the connection.
func NewRedisDecisionStore(cfg RedisStoreConfig) (*RedisDecisionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "boardflow:"
	}

	return &RedisDecisionStore{
		client:    client,
		keyPrefix: keyPrefix + "decision:",
		ttl:       cfg.TTL,
	}, nil
}

func (s *RedisDecisionStore) dataKey(sessionID string) string {
	return s.keyPrefix + "data:" + sessionID
}

func (s *RedisDecisionStore) allKey() string {
	return s.keyPrefix + "all"
}

func (s *RedisDecisionStore) proposalKey(proposalID string) string {
	return s.keyPrefix + "proposal:" + proposalID
}

func (s *RedisDecisionStore) outcomeKey(outcome deliberation.Outcome) string {
	return s.keyPrefix + "outcome:" + string(outcome)
}

// Save implements DecisionStore.
func (s *RedisDecisionStore) Save(ctx context.Context, decision *deliberation.Decision) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	score := float64(decision.DecidedAt.UnixNano())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(decision.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.allKey(), redis.Z{Score: score, Member: decision.SessionID})
	if decision.ProposalID != "" {
		pipe.ZAdd(ctx, s.proposalKey(decision.ProposalID), redis.Z{Score: score, Member: decision.SessionID})
	}
	pipe.ZAdd(ctx, s.outcomeKey(decision.Outcome), redis.Z{Score: score, Member: decision.SessionID})
	_, err = pipe.Exec(ctx)
	return err
}

// Get implements DecisionStore.
func (s *RedisDecisionStore) Get(ctx context.Context, sessionID string) (*deliberation.Decision, error) {
	data, err := s.client.Get(ctx, s.dataKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, errNotFound(sessionID)
	}
	if err != nil {
		return nil, err
	}

	var decision deliberation.Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// List implements DecisionStore. The narrowest available index drives the
// scan; remaining filters apply per decision. Expired payloads are skipped.
func (s *RedisDecisionStore) List(ctx context.Context, filter DecisionFilter) ([]*deliberation.Decision, error) {
	var index string
	switch {
	case filter.ProposalID != "":
		index = s.proposalKey(filter.ProposalID)
	case filter.Outcome != "":
		index = s.outcomeKey(filter.Outcome)
	default:
		index = s.allKey()
	}

	sessionIDs, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*deliberation.Decision, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		decision, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if filter.matches(decision) {
			result = append(result, decision)
		}
	}
	return filter.paginate(result), nil
}

// Delete implements DecisionStore.
func (s *RedisDecisionStore) Delete(ctx context.Context, sessionID string) error {
	decision, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.dataKey(sessionID))
	pipe.ZRem(ctx, s.allKey(), sessionID)
	if decision.ProposalID != "" {
		pipe.ZRem(ctx, s.proposalKey(decision.ProposalID), sessionID)
	}
	pipe.ZRem(ctx, s.outcomeKey(decision.Outcome), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

// Ping implements DecisionStore.
func (s *RedisDecisionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements DecisionStore.
func (s *RedisDecisionStore) Close() error {
	return s.client.Close()
}

var _ DecisionStore = (*RedisDecisionStore)(nil)
