package deliberation

import (
	"math"

	"go.uber.org/zap"
)

// StallDetector watches the sealed round history for non-progress. A stall is
// signalled when the consensus metric barely moved for the configured number
// of consecutive transitions AND the set of active concerns never shrank over
// that window. Small metric movement alone can be slow-but-real convergence;
// the concern condition separates true stagnation from gradual progress.
type StallDetector struct {
	// Threshold controls the movement tolerance: a transition qualifies as
	// stalled when |delta| < 1 - Threshold.
	Threshold float64

	// ConsecutiveRounds is the number of qualifying transitions required.
	ConsecutiveRounds int

	// MaxRounds is the session round budget. A detector configured with
	// ConsecutiveRounds >= MaxRounds never signals (degenerate but valid).
	MaxRounds int

	logger *zap.Logger
}

// NewStallDetector creates a detector for one session.
func NewStallDetector(threshold float64, consecutiveRounds, maxRounds int, logger *zap.Logger) *StallDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StallDetector{
		Threshold:         threshold,
		ConsecutiveRounds: consecutiveRounds,
		MaxRounds:         maxRounds,
		logger:            logger.With(zap.String("component", "stall_detector")),
	}
}

// Signal reports whether the trailing history window is stalled. One
// non-qualifying transition resets the streak.
func (d *StallDetector) Signal(history []*RoundRecord) bool {
	if d.ConsecutiveRounds >= d.MaxRounds {
		return false
	}
	if len(history) < d.ConsecutiveRounds+1 {
		return false
	}

	streak := 0
	for i := len(history) - 1; i > 0; i-- {
		if !d.qualifies(history[i-1], history[i]) {
			break
		}
		streak++
		if streak >= d.ConsecutiveRounds {
			d.logger.Info("stall detected",
				zap.Int("round", history[len(history)-1].Index),
				zap.Int("streak", streak),
				zap.Float64("score", history[len(history)-1].Metric.Score),
			)
			return true
		}
	}
	return false
}

// qualifies reports whether a single round transition counts toward a stall:
// metric movement below tolerance and a non-shrinking concern set.
func (d *StallDetector) qualifies(prev, next *RoundRecord) bool {
	delta := math.Abs(next.Metric.Score - prev.Metric.Score)
	if delta >= 1-d.Threshold {
		return false
	}
	return next.ActiveConcerns() >= prev.ActiveConcerns()
}
