package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/BaSui01/boardflow/deliberation"
)

// MemoryDecisionStore is an in-process DecisionStore for development and
// tests. Decisions are deep-copied on both write and read.
type MemoryDecisionStore struct {
	mu        sync.RWMutex
	decisions map[string]*deliberation.Decision
	closed    bool
}

// NewMemoryDecisionStore creates an empty in-memory store.
func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{
		decisions: make(map[string]*deliberation.Decision),
	}
}

// copyDecision round-trips through JSON so stored state shares nothing with
// the caller.
func copyDecision(d *deliberation.Decision) (*deliberation.Decision, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out deliberation.Decision
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save implements DecisionStore.
func (s *MemoryDecisionStore) Save(_ context.Context, decision *deliberation.Decision) error {
	cp, err := copyDecision(decision)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed()
	}
	s.decisions[cp.SessionID] = cp
	return nil
}

// Get implements DecisionStore.
func (s *MemoryDecisionStore) Get(_ context.Context, sessionID string) (*deliberation.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed()
	}
	d, ok := s.decisions[sessionID]
	if !ok {
		return nil, errNotFound(sessionID)
	}
	return copyDecision(d)
}

// List implements DecisionStore.
func (s *MemoryDecisionStore) List(_ context.Context, filter DecisionFilter) ([]*deliberation.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed()
	}

	result := make([]*deliberation.Decision, 0)
	for _, d := range s.decisions {
		if !filter.matches(d) {
			continue
		}
		cp, err := copyDecision(d)
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DecidedAt.After(result[j].DecidedAt)
	})
	return filter.paginate(result), nil
}

// Delete implements DecisionStore.
func (s *MemoryDecisionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed()
	}
	if _, ok := s.decisions[sessionID]; !ok {
		return errNotFound(sessionID)
	}
	delete(s.decisions, sessionID)
	return nil
}

// Ping implements DecisionStore.
func (s *MemoryDecisionStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed()
	}
	return nil
}

// Close implements DecisionStore.
func (s *MemoryDecisionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.decisions = nil
	return nil
}

var _ DecisionStore = (*MemoryDecisionStore)(nil)
