package deliberation

import (
	"sync"
	"time"
)

// ParticipantPosition is one participant's structured stance for one round.
// Positions are produced by the external reasoning collaborator and are
// superseded, never deleted, by the next round's record.
type ParticipantPosition struct {
	ParticipantID string `json:"participant_id"`
	Round         int    `json:"round"`

	// Support is the participant's support score in [0,1].
	Support float64 `json:"support"`

	Concerns            []string `json:"concerns,omitempty"`
	CompromiseProposals []string `json:"compromise_proposals,omitempty"`

	// Statement holds the round-kind-specific free text (initial position,
	// response to concerns, agreement points, ...). Opaque to the engine.
	Statement string `json:"statement,omitempty"`

	// CarriedForward marks a position substituted from the participant's
	// last known stance after a timeout or collaborator error.
	CarriedForward bool `json:"carried_forward,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// clone returns a deep copy.
func (p *ParticipantPosition) clone() *ParticipantPosition {
	cp := *p
	cp.Concerns = append([]string(nil), p.Concerns...)
	cp.CompromiseProposals = append([]string(nil), p.CompromiseProposals...)
	return &cp
}

// PositionStore holds the append-only per-participant position history for
// one session. It carries no deliberation logic.
type PositionStore struct {
	mu      sync.RWMutex
	history map[string][]*ParticipantPosition
}

// NewPositionStore creates an empty store.
func NewPositionStore() *PositionStore {
	return &PositionStore{history: make(map[string][]*ParticipantPosition)}
}

// Append records a new position for its participant.
func (s *PositionStore) Append(pos *ParticipantPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[pos.ParticipantID] = append(s.history[pos.ParticipantID], pos.clone())
}

// Latest returns the most recent position for a participant.
func (s *PositionStore) Latest(participantID string) (*ParticipantPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.history[participantID]
	if len(hist) == 0 {
		return nil, false
	}
	return hist[len(hist)-1].clone(), true
}

// History returns the full position history for a participant, oldest first.
func (s *PositionStore) History(participantID string) []*ParticipantPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.history[participantID]
	out := make([]*ParticipantPosition, len(hist))
	for i, p := range hist {
		out[i] = p.clone()
	}
	return out
}
