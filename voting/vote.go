package voting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BaSui01/boardflow/types"
)

// Choice is a participant's voting choice.
type Choice string

const (
	ChoiceApprove Choice = "approve"
	ChoiceReject  Choice = "reject"
	ChoiceAbstain Choice = "abstain"
)

// Outcome is the collective result of a vote.
type Outcome string

const (
	OutcomeApproved   Outcome = "approved"
	OutcomeRejected   Outcome = "rejected"
	OutcomeDeadlocked Outcome = "deadlocked"
)

// Vote is a single participant ballot. Immutable once cast.
type Vote struct {
	ParticipantID string    `json:"participant_id"`
	Choice        Choice    `json:"choice"`
	Weight        float64   `json:"weight,omitempty"` // <= 0 means default 1.0
	Rationale     string    `json:"rationale,omitempty"`
	CastAt        time.Time `json:"cast_at"`
}

// EffectiveWeight returns the vote weight, defaulting to 1.0.
func (v Vote) EffectiveWeight() float64 {
	if v.Weight <= 0 {
		return 1.0
	}
	return v.Weight
}

// supportValue maps a choice onto the [0,1] support scale used by the
// Delphi convergence measure.
func (v Vote) supportValue() float64 {
	switch v.Choice {
	case ChoiceApprove:
		return 1.0
	case ChoiceReject:
		return 0.0
	default:
		return 0.5
	}
}

// Tally is the full audited result of a voting phase.
type Tally struct {
	Protocol string `json:"protocol"`
	Outcome  Outcome `json:"outcome"`

	// Accepted ballots, in cast order. With duplicates the first stands.
	Votes []Vote `json:"votes"`

	ApproveWeight float64 `json:"approve_weight"`
	RejectWeight  float64 `json:"reject_weight"`
	AbstainWeight float64 `json:"abstain_weight"`

	// WeightDistribution records the effective weight per participant.
	WeightDistribution map[string]float64 `json:"weight_distribution"`

	// Anomalies records recovered irregularities, e.g. duplicate votes.
	Anomalies []string `json:"anomalies,omitempty"`

	// Delphi bookkeeping; zero for single-shot protocols.
	DelphiRounds int     `json:"delphi_rounds,omitempty"`
	FinalStdDev  float64 `json:"final_std_dev,omitempty"`
}

// ApproveFraction returns the weighted approve share of all cast weight.
func (t *Tally) ApproveFraction() float64 {
	total := t.ApproveWeight + t.RejectWeight + t.AbstainWeight
	if total == 0 {
		return 0
	}
	return t.ApproveWeight / total
}

// Aggregate is the anonymous distribution revealed to participants between
// Delphi rounds. It never identifies individual voters.
type Aggregate struct {
	Round        int     `json:"round"`
	ApproveCount int     `json:"approve_count"`
	RejectCount  int     `json:"reject_count"`
	AbstainCount int     `json:"abstain_count"`
	MeanSupport  float64 `json:"mean_support"`
	StdDev       float64 `json:"std_dev"`
}

// Caster requests one vote from every participant. Single-shot protocols
// invoke it once with nil feedback; Delphi invokes it repeatedly, passing the
// aggregate distribution of the prior round.
type Caster interface {
	CastVotes(ctx context.Context, feedback *Aggregate) ([]Vote, error)
}

// Protocol turns per-participant ballots into a collective outcome.
type Protocol interface {
	Name() string
	Decide(ctx context.Context, caster Caster) (*Tally, error)
}

// Protocol names accepted by NewProtocol.
const (
	ProtocolSimpleMajority    = "simple_majority"
	ProtocolWeightedThreshold = "weighted_threshold"
	ProtocolDelphi            = "delphi"
)

// Config selects and parametrizes a protocol.
type Config struct {
	Protocol string `json:"protocol" yaml:"protocol"`

	// Threshold is the weighted-approve fraction required by
	// weighted_threshold and by the Delphi final resolution.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	DelphiMaxRounds            int     `json:"delphi_max_rounds" yaml:"delphi_max_rounds"`
	DelphiConvergenceThreshold float64 `json:"delphi_convergence_threshold" yaml:"delphi_convergence_threshold"`
}

// NewProtocol constructs the configured protocol.
func NewProtocol(cfg Config) (Protocol, error) {
	switch cfg.Protocol {
	case ProtocolSimpleMajority, "":
		return &SimpleMajority{}, nil
	case ProtocolWeightedThreshold:
		return &WeightedThreshold{Threshold: cfg.Threshold}, nil
	case ProtocolDelphi:
		return &Delphi{
			MaxRounds:            cfg.DelphiMaxRounds,
			ConvergenceThreshold: cfg.DelphiConvergenceThreshold,
			ResolutionThreshold:  cfg.Threshold,
		}, nil
	default:
		return nil, types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("unknown voting protocol %q", cfg.Protocol))
	}
}

// ballotBox accumulates votes with first-wins duplicate handling.
type ballotBox struct {
	votes     []Vote
	seen      map[string]bool
	anomalies []string
}

func newBallotBox() *ballotBox {
	return &ballotBox{seen: make(map[string]bool)}
}

// cast records a vote. A repeated participant keeps their first vote and the
// duplicate is logged as a DUPLICATE_VOTE anomaly.
func (b *ballotBox) cast(v Vote) {
	if b.seen[v.ParticipantID] {
		b.anomalies = append(b.anomalies,
			fmt.Sprintf("%s: duplicate vote from %s ignored, first vote stands",
				types.ErrDuplicateVote, v.ParticipantID))
		return
	}
	b.seen[v.ParticipantID] = true
	if v.CastAt.IsZero() {
		v.CastAt = time.Now()
	}
	b.votes = append(b.votes, v)
}

// tally sums the accepted ballots into a Tally skeleton without an outcome.
func (b *ballotBox) tally(protocol string) *Tally {
	t := &Tally{
		Protocol:           protocol,
		Votes:              b.votes,
		WeightDistribution: make(map[string]float64, len(b.votes)),
		Anomalies:          b.anomalies,
	}
	for _, v := range b.votes {
		w := v.EffectiveWeight()
		t.WeightDistribution[v.ParticipantID] = w
		switch v.Choice {
		case ChoiceApprove:
			t.ApproveWeight += w
		case ChoiceReject:
			t.RejectWeight += w
		default:
			t.AbstainWeight += w
		}
	}
	return t
}

// aggregate computes the anonymous distribution of a ballot set.
func aggregate(round int, votes []Vote) *Aggregate {
	agg := &Aggregate{Round: round}
	var totalWeight, weightedSum float64
	for _, v := range votes {
		switch v.Choice {
		case ChoiceApprove:
			agg.ApproveCount++
		case ChoiceReject:
			agg.RejectCount++
		default:
			agg.AbstainCount++
		}
		w := v.EffectiveWeight()
		totalWeight += w
		weightedSum += w * v.supportValue()
	}
	if totalWeight == 0 {
		return agg
	}
	agg.MeanSupport = weightedSum / totalWeight

	var variance float64
	for _, v := range votes {
		d := v.supportValue() - agg.MeanSupport
		variance += v.EffectiveWeight() * d * d
	}
	agg.StdDev = math.Sqrt(variance / totalWeight)
	return agg
}
