package deliberation

import (
	"fmt"
	"math"

	"github.com/BaSui01/boardflow/types"
)

// Band classifies a consensus score.
type Band string

const (
	BandFullAgreement Band = "full_agreement" // score >= 1.0
	BandStrong        Band = "strong"         // score >= 0.8
	BandWeak          Band = "weak"           // score >= 0.6
	BandContested     Band = "contested"      // 0.4 < score < 0.6
	BandDeadlock      Band = "deadlock"       // score <= 0.4
)

// ConsensusMetric is the scalar agreement measure for one round, computed
// once from the round's full position set and never mutated.
type ConsensusMetric struct {
	Score float64 `json:"score"`
	Band  Band    `json:"band"`
}

// Score computes the consensus metric for a full round position set: the mean
// of the pairwise agreements 1-|s_i-s_j| over all participant pairs. A pure
// function of its input.
//
// With fewer than two positions the metric is undefined and the call fails
// with INSUFFICIENT_PARTICIPANTS; the controller treats that as fatal.
func Score(positions []ParticipantPosition) (ConsensusMetric, error) {
	n := len(positions)
	if n < 2 {
		return ConsensusMetric{}, types.NewError(types.ErrInsufficientParticipants,
			fmt.Sprintf("consensus metric undefined for %d participant(s)", n))
	}

	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += 1 - math.Abs(positions[i].Support-positions[j].Support)
			pairs++
		}
	}
	score := sum / float64(pairs)
	return ConsensusMetric{Score: score, Band: classify(score)}, nil
}

func classify(score float64) Band {
	switch {
	case score >= 1.0:
		return BandFullAgreement
	case score >= 0.8:
		return BandStrong
	case score >= 0.6:
		return BandWeak
	case score <= 0.4:
		return BandDeadlock
	default:
		return BandContested
	}
}

// MeanSupport returns the group mean of the support scores.
func MeanSupport(positions []ParticipantPosition) float64 {
	if len(positions) == 0 {
		return 0
	}
	var sum float64
	for i := range positions {
		sum += positions[i].Support
	}
	return sum / float64(len(positions))
}

// SupportStdDev returns the standard deviation of the support scores, used by
// minutes and stall diagnostics.
func SupportStdDev(positions []ParticipantPosition) float64 {
	n := len(positions)
	if n < 2 {
		return 0
	}
	mean := MeanSupport(positions)
	var variance float64
	for i := range positions {
		d := positions[i].Support - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(n))
}

// SupportDistances returns each participant's absolute distance from the
// group mean, keyed by participant ID. Outliers show up as the largest
// entries.
func SupportDistances(positions []ParticipantPosition) map[string]float64 {
	mean := MeanSupport(positions)
	distances := make(map[string]float64, len(positions))
	for i := range positions {
		distances[positions[i].ParticipantID] = math.Abs(positions[i].Support - mean)
	}
	return distances
}
