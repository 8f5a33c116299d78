package main

import (
	"context"
	"fmt"
	"math"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/voting"
)

// boardMember is a scripted committee seat for the demo commands. It opens at
// a persona-specific stance and drifts toward the group mean each round,
// shedding concerns as it converges. No external services are involved, so
// the demo runs anywhere.
type boardMember struct {
	persona deliberation.Persona
	stance  float64
}

func (m *boardMember) ID() string { return m.persona.ID }

func (m *boardMember) Position(_ context.Context, proposal *deliberation.Proposal, kind deliberation.RoundKind, history []*deliberation.RoundRecord) (*deliberation.ParticipantPosition, error) {
	support := m.stance
	if len(history) > 0 {
		prev := history[len(history)-1]
		own := m.stance
		for _, p := range prev.Positions {
			if p.ParticipantID == m.persona.ID {
				own = p.Support
			}
		}
		mean := deliberation.MeanSupport(prev.Positions)
		support = own + (mean-own)*0.6
	}

	pos := &deliberation.ParticipantPosition{
		Support: support,
		Statement: fmt.Sprintf("%s assessment of %q: support %.2f",
			m.persona.Role, proposal.Title, support),
	}

	// Concerns come from the persona's evaluation criteria and fall away as
	// the member's support rises.
	if n := remainingConcerns(len(m.persona.EvaluationCriteria), support); n > 0 {
		pos.Concerns = m.persona.EvaluationCriteria[:n]
	}
	if kind == deliberation.KindDiscussion && len(pos.Concerns) > 0 {
		pos.CompromiseProposals = []string{
			fmt.Sprintf("pilot the change while %s is resolved", pos.Concerns[0]),
		}
	}
	return pos, nil
}

func (m *boardMember) Vote(_ context.Context, proposal *deliberation.Proposal, history []*deliberation.RoundRecord, feedback *voting.Aggregate) (*voting.Vote, error) {
	support := m.stance
	if len(history) > 0 {
		last := history[len(history)-1]
		for _, p := range last.Positions {
			if p.ParticipantID == m.persona.ID {
				support = p.Support
			}
		}
	}
	// Under Delphi feedback, lean toward the anonymous group mean.
	if feedback != nil {
		support = (support + feedback.MeanSupport) / 2
	}

	vote := &voting.Vote{
		Weight:    m.persona.Weight,
		Rationale: fmt.Sprintf("%s on %q", m.persona.Role, proposal.Title),
	}
	switch {
	case support >= 0.6:
		vote.Choice = voting.ChoiceApprove
	case support <= 0.4:
		vote.Choice = voting.ChoiceReject
	default:
		vote.Choice = voting.ChoiceAbstain
	}
	return vote, nil
}

// remainingConcerns maps a support level onto how many of the persona's
// criteria are still open. Full support clears them all.
func remainingConcerns(total int, support float64) int {
	if total == 0 {
		return 0
	}
	n := int(math.Ceil(float64(total) * (1 - support)))
	if n > total {
		n = total
	}
	if n < 0 {
		n = 0
	}
	return n
}

// demoCommittee assembles the scripted board used by run and serve: a
// champion, a skeptic, and two moderates whose stances converge within a few
// rounds.
func demoCommittee() []deliberation.Participant {
	return []deliberation.Participant{
		&boardMember{
			persona: deliberation.Persona{
				ID:   "product-lead",
				Role: "Product Lead",
				EvaluationCriteria: []string{
					"customer demand",
				},
				Weight: 2,
			},
			stance: 0.9,
		},
		&boardMember{
			persona: deliberation.Persona{
				ID:   "security-officer",
				Role: "Security Officer",
				EvaluationCriteria: []string{
					"data exposure",
					"audit trail",
					"access control",
				},
				Weight: 1.5,
			},
			stance: 0.3,
		},
		&boardMember{
			persona: deliberation.Persona{
				ID:   "finance-analyst",
				Role: "Finance Analyst",
				EvaluationCriteria: []string{
					"run-rate cost",
					"licensing",
				},
			},
			stance: 0.55,
		},
		&boardMember{
			persona: deliberation.Persona{
				ID:   "eng-manager",
				Role: "Engineering Manager",
				EvaluationCriteria: []string{
					"maintenance load",
				},
			},
			stance: 0.7,
		},
	}
}

// demoProposal is the matter put before the demo committee.
func demoProposal() *deliberation.Proposal {
	return &deliberation.Proposal{
		ID:          "adopt-managed-queue",
		Title:       "Adopt a managed message queue",
		Description: "Replace the self-hosted broker with a managed queue service.",
		Fields: map[string]any{
			"owner":    "platform",
			"quarter":  "2026-Q3",
			"estimate": "6 weeks",
		},
	}
}
