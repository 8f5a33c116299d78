// Package boardflow provides a top-level convenience entry point for running
// committee deliberations with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/boardflow"
//
//	decision, err := boardflow.Deliberate(ctx, proposal, committee)
//	decision, err := boardflow.Deliberate(ctx, proposal, committee,
//	    boardflow.WithConfig(cfg),
//	    boardflow.WithDecisionStore(store),
//	    boardflow.WithMinutesDir("./minutes"),
//	)
//
// This is a thin wrapper around [deliberation.NewSession]; use the
// deliberation package directly when you need session-level control.
package boardflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/memory"
	"github.com/BaSui01/boardflow/minutes"
)

// Convenience aliases so simple callers only import this package.
type (
	// Proposal is the matter put before the committee.
	Proposal = deliberation.Proposal
	// Participant is one committee seat.
	Participant = deliberation.Participant
	// Decision is the terminal session artifact.
	Decision = deliberation.Decision
	// Config parametrizes the engine.
	Config = deliberation.Config
)

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config { return deliberation.DefaultConfig() }

// Option configures a deliberation run.
type Option func(*settings)

type settings struct {
	cfg        deliberation.Config
	logger     *zap.Logger
	observers  []deliberation.Observer
	store      memory.DecisionStore
	minutesDir string
}

// WithConfig overrides the engine configuration.
func WithConfig(cfg Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithObserver attaches an additional session observer.
func WithObserver(o deliberation.Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

// WithDecisionStore archives the decision after the session terminates.
func WithDecisionStore(store memory.DecisionStore) Option {
	return func(s *settings) { s.store = store }
}

// WithMinutesDir writes markdown minutes into the directory once the
// decision is reached.
func WithMinutesDir(dir string) Option {
	return func(s *settings) { s.minutesDir = dir }
}

// NewSession assembles a session with the given options without running it.
func NewSession(proposal *Proposal, participants []Participant, opts ...Option) (*deliberation.Session, error) {
	s := applyOptions(opts)

	session, err := deliberation.NewSession(proposal, participants, s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	if s.minutesDir != "" {
		writer := minutes.NewWriter(s.minutesDir, s.logger)
		session.AddObserver(minutes.NewRecorder(proposal, writer, s.logger))
	}
	for _, o := range s.observers {
		session.AddObserver(o)
	}
	return session, nil
}

// Deliberate runs a full deliberation to its decision. When a decision store
// is configured, the decision is archived before returning; archive failures
// surface in the log, not as run errors.
func Deliberate(ctx context.Context, proposal *Proposal, participants []Participant, opts ...Option) (*Decision, error) {
	s := applyOptions(opts)

	session, err := NewSession(proposal, participants, opts...)
	if err != nil {
		return nil, err
	}

	decision, runErr := session.Run(ctx)
	if decision != nil && s.store != nil {
		// Archive even when the run context was cancelled.
		if saveErr := s.store.Save(context.WithoutCancel(ctx), decision); saveErr != nil {
			s.logger.Warn("failed to archive decision",
				zap.String("session_id", decision.SessionID),
				zap.Error(saveErr),
			)
		}
	}
	return decision, runErr
}

func applyOptions(opts []Option) *settings {
	s := &settings{
		cfg:    deliberation.DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}
