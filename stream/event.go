package stream

import (
	"context"
	"time"

	"github.com/BaSui01/boardflow/deliberation"
)

// EventType distinguishes broadcast payloads.
type EventType string

const (
	// EventRoundSealed carries one sealed round record.
	EventRoundSealed EventType = "round_sealed"
	// EventDecisionReached carries the terminal decision.
	EventDecisionReached EventType = "decision_reached"
)

// Event is one broadcast message. Exactly one of Round and Decision is set,
// matching Type.
type Event struct {
	Type      EventType                 `json:"type"`
	SessionID string                    `json:"session_id,omitempty"`
	Round     *deliberation.RoundRecord `json:"round,omitempty"`
	Decision  *deliberation.Decision    `json:"decision,omitempty"`
	EmittedAt time.Time                 `json:"emitted_at"`
}

// EventConnection is a sink for broadcast events. Implementations must
// tolerate concurrent WriteEvent calls or serialize internally.
type EventConnection interface {
	WriteEvent(ctx context.Context, event Event) error
	Close() error
}
