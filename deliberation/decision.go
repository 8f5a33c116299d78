package deliberation

import (
	"time"

	"github.com/BaSui01/boardflow/voting"
)

// Outcome is the terminal result of a deliberation session.
type Outcome string

const (
	OutcomeApproved   Outcome = "approved"
	OutcomeRejected   Outcome = "rejected"
	OutcomeDeadlocked Outcome = "deadlocked"

	// OutcomeInconclusive marks a session forced into voting after a
	// participant was carried forward for three consecutive rounds.
	OutcomeInconclusive Outcome = "inconclusive"

	// OutcomeError marks a session aborted by a fatal condition.
	OutcomeError Outcome = "error"
)

// Outcome flags refining how the terminal state was reached.
const (
	FlagDeadlockedByStall = "deadlocked-by-stall"
	FlagCarryForwardLimit = "carry-forward-limit"
	FlagAborted           = "aborted"
)

// Decision is the single terminal artifact of a session: the outcome, the
// final metric and/or vote tally, and the sealed round sequence that produced
// it. Never mutated after creation.
type Decision struct {
	SessionID  string  `json:"session_id"`
	ProposalID string  `json:"proposal_id"`
	Outcome    Outcome `json:"outcome"`
	Flag       string  `json:"flag,omitempty"`

	FinalMetric ConsensusMetric `json:"final_metric"`
	Tally       *voting.Tally   `json:"tally,omitempty"`

	Rounds []*RoundRecord `json:"rounds"`

	// CarriedForward summarizes which participants were carried forward in
	// which rounds, keyed by round index.
	CarriedForward map[int][]string `json:"carried_forward,omitempty"`

	// Anomalies records recovered irregularities (duplicate votes, failed
	// vote requests) for auditability.
	Anomalies []string `json:"anomalies,omitempty"`

	DecidedAt time.Time `json:"decided_at"`
}
