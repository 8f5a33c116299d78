package deliberation

import "time"

// RoundKind distinguishes what the controller requires from participants in a
// given round.
type RoundKind string

const (
	// KindEvaluation is round 0: initial position, key concerns, suggestions.
	KindEvaluation RoundKind = "evaluation"
	// KindDiscussion covers the middle rounds: position updates, responses
	// to concerns, compromise proposals.
	KindDiscussion RoundKind = "discussion"
	// KindResolution is the last budgeted round: final position, agreement
	// points, remaining concerns.
	KindResolution RoundKind = "resolution"
)

// roundKind maps a round index onto its kind for a given budget.
func roundKind(index, maxRounds int) RoundKind {
	switch {
	case index == 0:
		return KindEvaluation
	case index == maxRounds-1:
		return KindResolution
	default:
		return KindDiscussion
	}
}

// RoundRecord is the sealed outcome of one round: the full position set and
// the consensus metric computed from it. Immutable once sealed; consumers
// always receive deep copies.
type RoundRecord struct {
	Index     int                   `json:"index"`
	Kind      RoundKind             `json:"kind"`
	Positions []ParticipantPosition `json:"positions"`
	Metric    ConsensusMetric       `json:"metric"`

	// Degraded marks a round in which at least one position was carried
	// forward; CarriedForward lists the affected participants.
	Degraded       bool     `json:"degraded,omitempty"`
	CarriedForward []string `json:"carried_forward,omitempty"`

	SealedAt time.Time `json:"sealed_at"`
}

// Clone returns a deep copy of the record.
func (r *RoundRecord) Clone() *RoundRecord {
	cp := *r
	cp.Positions = make([]ParticipantPosition, len(r.Positions))
	for i := range r.Positions {
		cp.Positions[i] = *r.Positions[i].clone()
	}
	cp.CarriedForward = append([]string(nil), r.CarriedForward...)
	return &cp
}

// ActiveConcerns returns the number of distinct concerns held across all
// positions in the round. The stall detector compares this across rounds to
// tell stagnation from slow convergence.
func (r *RoundRecord) ActiveConcerns() int {
	seen := make(map[string]struct{})
	for i := range r.Positions {
		for _, c := range r.Positions[i].Concerns {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

func cloneRounds(rounds []*RoundRecord) []*RoundRecord {
	out := make([]*RoundRecord, len(rounds))
	for i, r := range rounds {
		out[i] = r.Clone()
	}
	return out
}
