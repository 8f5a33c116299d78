package minutes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/voting"
)

func sampleProposal() *deliberation.Proposal {
	return &deliberation.Proposal{
		ID:          "prop-42",
		Title:       "New AI Ethics Research Center",
		Description: "Establish a cross-disciplinary research center.",
		Fields: map[string]any{
			"budget":   "5M",
			"timeline": "3 years",
		},
	}
}

func sampleDecision() *deliberation.Decision {
	return &deliberation.Decision{
		SessionID:  "sess-7",
		ProposalID: "prop-42",
		Outcome:    deliberation.OutcomeDeadlocked,
		Flag:       deliberation.FlagDeadlockedByStall,
		FinalMetric: deliberation.ConsensusMetric{
			Score: 0.62,
			Band:  deliberation.BandWeak,
		},
		Rounds: []*deliberation.RoundRecord{
			{
				Index: 0,
				Kind:  deliberation.KindEvaluation,
				Positions: []deliberation.ParticipantPosition{
					{ParticipantID: "academic", Support: 0.4, Concerns: []string{"budget", "staffing"}, Statement: "Funding is too thin."},
					{ParticipantID: "research", Support: 0.8, Statement: "Strong strategic fit."},
				},
				Metric: deliberation.ConsensusMetric{Score: 0.6, Band: deliberation.BandWeak},
			},
			{
				Index: 1,
				Kind:  deliberation.KindDiscussion,
				Positions: []deliberation.ParticipantPosition{
					{ParticipantID: "academic", Support: 0.42, Concerns: []string{"budget"}},
					{ParticipantID: "research", Support: 0.8, CarriedForward: true},
				},
				Metric:         deliberation.ConsensusMetric{Score: 0.62, Band: deliberation.BandWeak},
				Degraded:       true,
				CarriedForward: []string{"research"},
			},
		},
		Tally: &voting.Tally{
			Protocol:      voting.ProtocolSimpleMajority,
			Outcome:       voting.OutcomeDeadlocked,
			ApproveWeight: 1,
			RejectWeight:  1,
			Votes: []voting.Vote{
				{ParticipantID: "academic", Choice: voting.ChoiceReject, Rationale: "Budget unresolved."},
				{ParticipantID: "research", Choice: voting.ChoiceApprove},
			},
		},
		Anomalies: []string{"PARTICIPANT_TIMEOUT: no ballot from infra, counted as abstention"},
		DecidedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	out := Render(sampleProposal(), sampleDecision())

	assert.Contains(t, out, "# Deliberation Minutes: New AI Ethics Research Center")
	assert.Contains(t, out, "- Session: `sess-7`")
	assert.Contains(t, out, "**deadlocked** (deadlocked-by-stall)")
	assert.Contains(t, out, "Final consensus: 0.620")

	// Proposal fields render sorted.
	assert.Contains(t, out, "| budget | 5M |")
	assert.Contains(t, out, "| timeline | 3 years |")

	// Rounds are numbered from 1 with their kinds.
	assert.Contains(t, out, "## Round 1 — evaluation")
	assert.Contains(t, out, "## Round 2 — discussion")
	assert.Contains(t, out, "| academic | 0.40 | budget; staffing | Funding is too thin. |")
	assert.Contains(t, out, "> Carried forward: research")
	assert.Contains(t, out, "research *(carried forward)*")

	// Voting section.
	assert.Contains(t, out, "## Voting — simple_majority")
	assert.Contains(t, out, "**deadlocked** (approve 1.00 / reject 1.00 / abstain 0.00)")
	assert.Contains(t, out, "| academic | reject | 1.00 | Budget unresolved. |")

	assert.Contains(t, out, "## Anomalies")
	assert.Contains(t, out, "no ballot from infra")
}

func TestRender_NoVotingPhase(t *testing.T) {
	t.Parallel()

	decision := sampleDecision()
	decision.Tally = nil
	decision.Anomalies = nil
	decision.Outcome = deliberation.OutcomeApproved
	decision.Flag = ""

	out := Render(sampleProposal(), decision)
	assert.Contains(t, out, "- Outcome: **approved**")
	assert.NotContains(t, out, "## Voting")
	assert.NotContains(t, out, "## Anomalies")
}

func TestRender_NilProposal(t *testing.T) {
	t.Parallel()

	out := Render(nil, sampleDecision())
	assert.Contains(t, out, "# Deliberation Minutes: Untitled proposal")
	assert.NotContains(t, out, "## Proposal")
}

func TestWriter_Save(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "minutes")
	w := NewWriter(dir, nil)

	path, err := w.Save(sampleProposal(), sampleDecision())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "minutes-sess-7.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "New AI Ethics Research Center")
}

func TestRecorder_WritesOnDecision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRecorder(sampleProposal(), NewWriter(dir, nil), nil)

	// Round events are ignored; only the decision triggers a write.
	r.RoundSealed(&deliberation.RoundRecord{Index: 0})
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	r.DecisionReached(sampleDecision())
	require.FileExists(t, r.LastPath)
	data, err := os.ReadFile(r.LastPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "- Session: `sess-7`")
}
