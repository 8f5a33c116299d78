package minutes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/boardflow/deliberation"
)

// Render produces the markdown minutes for a completed session.
func Render(proposal *deliberation.Proposal, decision *deliberation.Decision) string {
	var sb strings.Builder

	title := "Untitled proposal"
	if proposal != nil && proposal.Title != "" {
		title = proposal.Title
	}
	fmt.Fprintf(&sb, "# Deliberation Minutes: %s\n\n", title)

	fmt.Fprintf(&sb, "- Session: `%s`\n", decision.SessionID)
	fmt.Fprintf(&sb, "- Proposal: `%s`\n", decision.ProposalID)
	if decision.Flag != "" {
		fmt.Fprintf(&sb, "- Outcome: **%s** (%s)\n", decision.Outcome, decision.Flag)
	} else {
		fmt.Fprintf(&sb, "- Outcome: **%s**\n", decision.Outcome)
	}
	fmt.Fprintf(&sb, "- Final consensus: %.3f (%s)\n", decision.FinalMetric.Score, decision.FinalMetric.Band)
	fmt.Fprintf(&sb, "- Decided: %s\n", decision.DecidedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	if proposal != nil {
		writeProposal(&sb, proposal)
	}
	for _, round := range decision.Rounds {
		writeRound(&sb, round)
	}
	if decision.Tally != nil {
		writeTally(&sb, decision.Tally.Protocol, decision)
	}
	if len(decision.Anomalies) > 0 {
		sb.WriteString("\n## Anomalies\n\n")
		for _, a := range decision.Anomalies {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}

	return sb.String()
}

func writeProposal(sb *strings.Builder, proposal *deliberation.Proposal) {
	sb.WriteString("\n## Proposal\n\n")
	if proposal.Description != "" {
		fmt.Fprintf(sb, "%s\n", proposal.Description)
	}
	if len(proposal.Fields) == 0 {
		return
	}

	keys := make([]string, 0, len(proposal.Fields))
	for k := range proposal.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("\n| Field | Value |\n|---|---|\n")
	for _, k := range keys {
		fmt.Fprintf(sb, "| %s | %v |\n", k, proposal.Fields[k])
	}
}

func writeRound(sb *strings.Builder, round *deliberation.RoundRecord) {
	fmt.Fprintf(sb, "\n## Round %d — %s\n\n", round.Index+1, round.Kind)
	fmt.Fprintf(sb, "Consensus: %.3f (%s)\n", round.Metric.Score, round.Metric.Band)
	if len(round.CarriedForward) > 0 {
		fmt.Fprintf(sb, "\n> Carried forward: %s\n", strings.Join(round.CarriedForward, ", "))
	}

	sb.WriteString("\n| Participant | Support | Concerns | Statement |\n|---|---|---|---|\n")
	for i := range round.Positions {
		pos := &round.Positions[i]
		name := pos.ParticipantID
		if pos.CarriedForward {
			name += " *(carried forward)*"
		}
		fmt.Fprintf(sb, "| %s | %.2f | %s | %s |\n",
			name, pos.Support,
			strings.Join(pos.Concerns, "; "),
			strings.ReplaceAll(pos.Statement, "\n", " "),
		)
	}
}

func writeTally(sb *strings.Builder, protocol string, decision *deliberation.Decision) {
	tally := decision.Tally
	fmt.Fprintf(sb, "\n## Voting — %s\n\n", protocol)
	fmt.Fprintf(sb, "Result: **%s** (approve %.2f / reject %.2f / abstain %.2f)\n",
		tally.Outcome, tally.ApproveWeight, tally.RejectWeight, tally.AbstainWeight)
	if tally.DelphiRounds > 0 {
		fmt.Fprintf(sb, "\nDelphi rounds: %d, final support std dev: %.3f\n",
			tally.DelphiRounds, tally.FinalStdDev)
	}

	sb.WriteString("\n| Participant | Choice | Weight | Rationale |\n|---|---|---|---|\n")
	for _, v := range tally.Votes {
		fmt.Fprintf(sb, "| %s | %s | %.2f | %s |\n",
			v.ParticipantID, v.Choice, v.EffectiveWeight(),
			strings.ReplaceAll(v.Rationale, "\n", " "),
		)
	}
}

// Writer persists rendered minutes to a directory, one file per session.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		dir:    dir,
		logger: logger.With(zap.String("component", "minutes_writer")),
	}
}

// Save renders and writes the minutes, returning the file path.
func (w *Writer) Save(proposal *deliberation.Proposal, decision *deliberation.Decision) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create minutes directory: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("minutes-%s.md", decision.SessionID))
	content := Render(proposal, decision)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write minutes: %w", err)
	}

	w.logger.Info("minutes written",
		zap.String("session_id", decision.SessionID),
		zap.String("path", path),
	)
	return path, nil
}

// Recorder is a session observer that writes the minutes as soon as the
// decision is reached.
type Recorder struct {
	proposal *deliberation.Proposal
	writer   *Writer
	logger   *zap.Logger

	// LastPath holds the most recently written file, for the caller.
	LastPath string
}

// NewRecorder creates an observer bound to one proposal.
func NewRecorder(proposal *deliberation.Proposal, writer *Writer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{proposal: proposal, writer: writer, logger: logger}
}

// RoundSealed implements deliberation.Observer.
func (r *Recorder) RoundSealed(*deliberation.RoundRecord) {}

// DecisionReached implements deliberation.Observer.
func (r *Recorder) DecisionReached(decision *deliberation.Decision) {
	path, err := r.writer.Save(r.proposal, decision)
	if err != nil {
		r.logger.Error("failed to write minutes",
			zap.String("session_id", decision.SessionID),
			zap.Error(err),
		)
		return
	}
	r.LastPath = path
}

var _ deliberation.Observer = (*Recorder)(nil)
