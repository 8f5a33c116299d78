package boardflow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/memory"
	"github.com/BaSui01/boardflow/voting"
)

// scriptedMember returns fixed supports per round and a fixed ballot.
type scriptedMember struct {
	id       string
	supports []float64
	choice   voting.Choice
}

func (m *scriptedMember) ID() string { return m.id }

func (m *scriptedMember) Position(_ context.Context, _ *Proposal, _ deliberation.RoundKind, history []*deliberation.RoundRecord) (*deliberation.ParticipantPosition, error) {
	idx := len(history)
	if idx >= len(m.supports) {
		idx = len(m.supports) - 1
	}
	return &deliberation.ParticipantPosition{Support: m.supports[idx]}, nil
}

func (m *scriptedMember) Vote(_ context.Context, _ *Proposal, _ []*deliberation.RoundRecord, _ *voting.Aggregate) (*voting.Vote, error) {
	return &voting.Vote{Choice: m.choice}, nil
}

func convergingCommittee() []Participant {
	return []Participant{
		&scriptedMember{id: "a", supports: []float64{0.3, 0.8}, choice: voting.ChoiceApprove},
		&scriptedMember{id: "b", supports: []float64{0.9, 0.8}, choice: voting.ChoiceApprove},
	}
}

func TestDeliberate_EndToEnd(t *testing.T) {
	t.Parallel()

	proposal := &Proposal{ID: "prop-1", Title: "Annual budget"}
	store := memory.NewMemoryDecisionStore()
	dir := t.TempDir()

	decision, err := Deliberate(context.Background(), proposal, convergingCommittee(),
		WithDecisionStore(store),
		WithMinutesDir(dir),
	)
	require.NoError(t, err)
	assert.Equal(t, deliberation.OutcomeApproved, decision.Outcome)

	// The decision was archived.
	archived, err := store.Get(context.Background(), decision.SessionID)
	require.NoError(t, err)
	assert.Equal(t, decision.Outcome, archived.Outcome)

	// Minutes landed on disk.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), decision.SessionID)
}

func TestDeliberate_CustomConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxRounds = 1
	cfg.ParticipantTimeout = time.Second

	committee := []Participant{
		&scriptedMember{id: "a", supports: []float64{0.2}, choice: voting.ChoiceApprove},
		&scriptedMember{id: "b", supports: []float64{0.8}, choice: voting.ChoiceApprove},
	}

	decision, err := Deliberate(context.Background(), &Proposal{ID: "p"}, committee,
		WithConfig(cfg))
	require.NoError(t, err)
	require.Len(t, decision.Rounds, 1)
	require.NotNil(t, decision.Tally, "budget of one round forces a vote")
	assert.Equal(t, deliberation.OutcomeApproved, decision.Outcome)
}

func TestNewSession_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxRounds = -1
	_, err := NewSession(&Proposal{ID: "p"}, convergingCommittee(), WithConfig(cfg))
	require.Error(t, err)
}

type countingObserver struct {
	rounds    int
	decisions int
}

func (o *countingObserver) RoundSealed(*deliberation.RoundRecord) { o.rounds++ }
func (o *countingObserver) DecisionReached(*deliberation.Decision) {
	o.decisions++
}

func TestDeliberate_WithObserver(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	_, err := Deliberate(context.Background(), &Proposal{ID: "p"}, convergingCommittee(),
		WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, 2, obs.rounds)
	assert.Equal(t, 1, obs.decisions)
}
