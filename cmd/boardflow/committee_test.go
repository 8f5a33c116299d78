package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/boardflow"
	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/voting"
)

func TestDemoCommittee_Converges(t *testing.T) {
	t.Parallel()

	decision, err := boardflow.Deliberate(context.Background(), demoProposal(), demoCommittee())
	require.NoError(t, err)

	assert.Equal(t, deliberation.OutcomeApproved, decision.Outcome)
	assert.Nil(t, decision.Tally, "convergence should settle the matter without a vote")
	assert.Len(t, decision.Rounds, 2, "members drifting toward the mean converge on round two")
	assert.GreaterOrEqual(t, decision.FinalMetric.Score, 0.75)
}

func TestBoardMember_VoteMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		stance float64
		want   voting.Choice
	}{
		{"supporter approves", 0.9, voting.ChoiceApprove},
		{"opponent rejects", 0.2, voting.ChoiceReject},
		{"fence sitter abstains", 0.5, voting.ChoiceAbstain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := &boardMember{
				persona: deliberation.Persona{ID: "m", Role: "Member"},
				stance:  tc.stance,
			}
			vote, err := m.Vote(context.Background(), demoProposal(), nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, vote.Choice)
		})
	}
}

func TestBoardMember_DelphiFeedbackMovesVote(t *testing.T) {
	t.Parallel()

	m := &boardMember{
		persona: deliberation.Persona{ID: "m", Role: "Member"},
		stance:  0.5,
	}
	vote, err := m.Vote(context.Background(), demoProposal(), nil,
		&voting.Aggregate{MeanSupport: 0.9})
	require.NoError(t, err)
	assert.Equal(t, voting.ChoiceApprove, vote.Choice,
		"strong group support should pull an abstainer to approve")
}

func TestRemainingConcerns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, remainingConcerns(0, 0.2))
	assert.Equal(t, 3, remainingConcerns(3, 0.0))
	assert.Equal(t, 0, remainingConcerns(3, 1.0))
	assert.Equal(t, 2, remainingConcerns(3, 0.5))
	assert.Equal(t, 3, remainingConcerns(3, -0.1), "support below zero keeps everything open")
}

func TestLoadProposal(t *testing.T) {
	t.Parallel()

	t.Run("empty path uses demo proposal", func(t *testing.T) {
		t.Parallel()
		p, err := loadProposal("")
		require.NoError(t, err)
		assert.Equal(t, demoProposal().ID, p.ID)
	})

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "proposal.json")
		require.NoError(t, os.WriteFile(path,
			[]byte(`{"id":"p-1","title":"Retire the batch pipeline"}`), 0o644))

		p, err := loadProposal(path)
		require.NoError(t, err)
		assert.Equal(t, "p-1", p.ID)
		assert.Equal(t, "Retire the batch pipeline", p.Title)
	})

	t.Run("missing id rejected", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "proposal.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"title":"no id"}`), 0o644))

		_, err := loadProposal(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := loadProposal(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}
