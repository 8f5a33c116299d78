package voting

import "context"

// SimpleMajority approves when the weighted approve votes strictly outweigh
// the weighted reject votes. Abstentions carry no weight in the comparison.
// A tie resolves to deadlocked.
type SimpleMajority struct{}

// Name implements Protocol.
func (p *SimpleMajority) Name() string { return ProtocolSimpleMajority }

// Decide implements Protocol.
func (p *SimpleMajority) Decide(ctx context.Context, caster Caster) (*Tally, error) {
	votes, err := caster.CastVotes(ctx, nil)
	if err != nil {
		return nil, err
	}

	box := newBallotBox()
	for _, v := range votes {
		box.cast(v)
	}

	t := box.tally(p.Name())
	switch {
	case t.ApproveWeight > t.RejectWeight:
		t.Outcome = OutcomeApproved
	case t.RejectWeight > t.ApproveWeight:
		t.Outcome = OutcomeRejected
	default:
		t.Outcome = OutcomeDeadlocked
	}
	return t, nil
}
