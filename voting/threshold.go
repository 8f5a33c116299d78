package voting

import "context"

// WeightedThreshold approves when the weighted approve fraction of all cast
// weight (abstentions included in the denominator) reaches Threshold.
type WeightedThreshold struct {
	Threshold float64
}

// Name implements Protocol.
func (p *WeightedThreshold) Name() string { return ProtocolWeightedThreshold }

// Decide implements Protocol.
func (p *WeightedThreshold) Decide(ctx context.Context, caster Caster) (*Tally, error) {
	votes, err := caster.CastVotes(ctx, nil)
	if err != nil {
		return nil, err
	}

	box := newBallotBox()
	for _, v := range votes {
		box.cast(v)
	}

	t := box.tally(p.Name())
	t.Outcome = resolveThreshold(t, p.Threshold)
	return t, nil
}

func resolveThreshold(t *Tally, threshold float64) Outcome {
	if t.ApproveFraction() >= threshold {
		return OutcomeApproved
	}
	return OutcomeRejected
}
