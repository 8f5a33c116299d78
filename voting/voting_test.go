package voting

import (
	"context"
	"testing"

	"github.com/BaSui01/boardflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Mock caster
// ---------------------------------------------------------------------------

// scriptedCaster replays one vote slate per invocation and records the
// feedback it was shown, so tests can assert Delphi anonymity.
type scriptedCaster struct {
	rounds   [][]Vote
	calls    int
	feedback []*Aggregate
}

func (c *scriptedCaster) CastVotes(_ context.Context, feedback *Aggregate) ([]Vote, error) {
	c.feedback = append(c.feedback, feedback)
	slate := c.rounds[c.calls]
	if c.calls < len(c.rounds)-1 {
		c.calls++
	}
	return slate, nil
}

func votes(vs ...Vote) [][]Vote { return [][]Vote{vs} }

func approve(id string, weight float64) Vote {
	return Vote{ParticipantID: id, Choice: ChoiceApprove, Weight: weight}
}

func reject(id string, weight float64) Vote {
	return Vote{ParticipantID: id, Choice: ChoiceReject, Weight: weight}
}

func abstain(id string) Vote {
	return Vote{ParticipantID: id, Choice: ChoiceAbstain}
}

// ---------------------------------------------------------------------------
// Simple majority
// ---------------------------------------------------------------------------

func TestSimpleMajority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		slate   []Vote
		outcome Outcome
	}{
		{"unanimous approve", []Vote{approve("a", 1), approve("b", 1)}, OutcomeApproved},
		{"tie is deadlocked", []Vote{approve("a", 1), reject("b", 1)}, OutcomeDeadlocked},
		{"weighted reject wins", []Vote{approve("a", 1), reject("b", 2)}, OutcomeRejected},
		{"abstentions carry no weight", []Vote{approve("a", 1), abstain("b"), abstain("c")}, OutcomeApproved},
		{"all abstain is deadlocked", []Vote{abstain("a"), abstain("b")}, OutcomeDeadlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &SimpleMajority{}
			tally, err := p.Decide(context.Background(), &scriptedCaster{rounds: votes(tt.slate...)})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, tally.Outcome)
			assert.Equal(t, ProtocolSimpleMajority, tally.Protocol)
		})
	}
}

func TestSimpleMajority_DuplicateVoteFirstWins(t *testing.T) {
	t.Parallel()

	p := &SimpleMajority{}
	slate := []Vote{
		approve("a", 1),
		reject("a", 1), // duplicate, must be ignored
		reject("b", 1),
		approve("c", 1),
	}
	tally, err := p.Decide(context.Background(), &scriptedCaster{rounds: votes(slate...)})
	require.NoError(t, err)

	assert.Equal(t, OutcomeApproved, tally.Outcome)
	assert.Len(t, tally.Votes, 3)
	require.Len(t, tally.Anomalies, 1)
	assert.Contains(t, tally.Anomalies[0], string(types.ErrDuplicateVote))
	assert.Contains(t, tally.Anomalies[0], "a")
}

// ---------------------------------------------------------------------------
// Weighted threshold
// ---------------------------------------------------------------------------

func TestWeightedThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		threshold float64
		slate     []Vote
		outcome   Outcome
	}{
		{"two approvals meet 0.75", 0.75, []Vote{approve("a", 1), approve("b", 1)}, OutcomeApproved},
		{"split misses 0.75", 0.75, []Vote{approve("a", 1), reject("b", 1)}, OutcomeRejected},
		{"abstain dilutes the fraction", 0.75, []Vote{approve("a", 1), approve("b", 1), abstain("c")}, OutcomeRejected},
		{"heavy approver carries", 0.6, []Vote{approve("a", 3), reject("b", 1)}, OutcomeApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &WeightedThreshold{Threshold: tt.threshold}
			tally, err := p.Decide(context.Background(), &scriptedCaster{rounds: votes(tt.slate...)})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, tally.Outcome)
		})
	}
}

func TestTally_WeightDistribution(t *testing.T) {
	t.Parallel()

	p := &WeightedThreshold{Threshold: 0.5}
	tally, err := p.Decide(context.Background(),
		&scriptedCaster{rounds: votes(approve("a", 2), reject("b", 0))})
	require.NoError(t, err)

	assert.Equal(t, 2.0, tally.WeightDistribution["a"])
	assert.Equal(t, 1.0, tally.WeightDistribution["b"], "zero weight defaults to 1.0")
	assert.InDelta(t, 2.0/3.0, tally.ApproveFraction(), 1e-9)
}

// ---------------------------------------------------------------------------
// Delphi
// ---------------------------------------------------------------------------

func TestDelphi_ConvergesBeforeMaxRounds(t *testing.T) {
	t.Parallel()

	caster := &scriptedCaster{rounds: [][]Vote{
		{approve("a", 1), reject("b", 1), abstain("c")}, // divergent
		{approve("a", 1), approve("b", 1), abstain("c")}, // closer
		{approve("a", 1), approve("b", 1), approve("c", 1)}, // unanimous
	}}

	p := &Delphi{MaxRounds: 5, ConvergenceThreshold: 0.05, ResolutionThreshold: 0.75}
	tally, err := p.Decide(context.Background(), caster)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApproved, tally.Outcome)
	assert.Equal(t, 3, tally.DelphiRounds)
	assert.Less(t, tally.FinalStdDev, 0.05)

	// First round sees no feedback; later rounds see only aggregates.
	require.GreaterOrEqual(t, len(caster.feedback), 3)
	assert.Nil(t, caster.feedback[0])
	for _, fb := range caster.feedback[1:] {
		require.NotNil(t, fb)
		assert.Equal(t, 3, fb.ApproveCount+fb.RejectCount+fb.AbstainCount)
	}
}

func TestDelphi_StopsAtMaxRounds(t *testing.T) {
	t.Parallel()

	// Permanently split committee never converges.
	split := []Vote{approve("a", 1), reject("b", 1)}
	caster := &scriptedCaster{rounds: [][]Vote{split}}

	p := &Delphi{MaxRounds: 3, ConvergenceThreshold: 0.01, ResolutionThreshold: 0.75}
	tally, err := p.Decide(context.Background(), caster)
	require.NoError(t, err)

	assert.Equal(t, 3, tally.DelphiRounds)
	assert.Equal(t, OutcomeRejected, tally.Outcome)
}

func TestDelphi_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Delphi{MaxRounds: 3, ConvergenceThreshold: 0.01}
	_, err := p.Decide(ctx, &scriptedCaster{rounds: votes(approve("a", 1))})
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

func TestNewProtocol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"default is simple majority", Config{}, ProtocolSimpleMajority, false},
		{"simple majority", Config{Protocol: ProtocolSimpleMajority}, ProtocolSimpleMajority, false},
		{"weighted threshold", Config{Protocol: ProtocolWeightedThreshold, Threshold: 0.75}, ProtocolWeightedThreshold, false},
		{"delphi", Config{Protocol: ProtocolDelphi, DelphiMaxRounds: 3}, ProtocolDelphi, false},
		{"unknown protocol", Config{Protocol: "ranked_choice"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewProtocol(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
