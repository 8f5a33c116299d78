package voting

import "context"

// Delphi runs a bounded sequence of anonymous re-votes. After each round the
// caster receives only the aggregate distribution, never individual ballots.
// Re-voting stops once the weighted standard deviation of support falls below
// ConvergenceThreshold or MaxRounds is reached, then the final round resolves
// via weighted threshold.
type Delphi struct {
	MaxRounds            int
	ConvergenceThreshold float64
	ResolutionThreshold  float64
}

// Name implements Protocol.
func (p *Delphi) Name() string { return ProtocolDelphi }

// Decide implements Protocol.
func (p *Delphi) Decide(ctx context.Context, caster Caster) (*Tally, error) {
	maxRounds := p.MaxRounds
	if maxRounds < 1 {
		maxRounds = 1
	}

	var (
		feedback *Aggregate
		final    []Vote
		rounds   int
	)

	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		votes, err := caster.CastVotes(ctx, feedback)
		if err != nil {
			return nil, err
		}

		// Within one Delphi round every participant still votes once;
		// re-voting happens across rounds.
		box := newBallotBox()
		for _, v := range votes {
			box.cast(v)
		}
		final = box.votes
		rounds = round

		agg := aggregate(round, final)
		feedback = agg
		if agg.StdDev < p.ConvergenceThreshold {
			break
		}
	}

	box := newBallotBox()
	for _, v := range final {
		box.cast(v)
	}
	t := box.tally(p.Name())
	t.DelphiRounds = rounds
	if feedback != nil {
		t.FinalStdDev = feedback.StdDev
	}
	t.Outcome = resolveThreshold(t, p.ResolutionThreshold)
	return t, nil
}
