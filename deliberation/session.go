package deliberation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/boardflow/types"
	"github.com/BaSui01/boardflow/voting"
)

// Participant is the external reasoning collaborator for one committee seat.
// Implementations typically front an LLM; the engine only sees the structured
// results.
type Participant interface {
	ID() string

	// Position produces the participant's stance for the given round kind.
	// The history contains every previously sealed round.
	Position(ctx context.Context, proposal *Proposal, kind RoundKind, history []*RoundRecord) (*ParticipantPosition, error)

	// Vote casts the participant's ballot during the voting phase. For
	// Delphi re-votes, feedback carries the anonymous aggregate of the
	// prior vote round; it is nil otherwise.
	Vote(ctx context.Context, proposal *Proposal, history []*RoundRecord, feedback *voting.Aggregate) (*voting.Vote, error)
}

// Observer receives read-only session artifacts as they are sealed. Observers
// must not block; the engine calls them synchronously at round boundaries.
type Observer interface {
	RoundSealed(record *RoundRecord)
	DecisionReached(decision *Decision)
}

// carryForwardLimit forces an early transition to voting once a participant
// has been carried forward this many consecutive rounds.
const carryForwardLimit = 3

// Session drives one deliberation: the round state machine, metric scoring,
// stall detection and the optional voting phase. All state is scoped to the
// session instance; independent sessions may run concurrently.
type Session struct {
	id           string
	proposal     *Proposal
	participants []Participant
	cfg          Config

	protocol voting.Protocol
	store    *PositionStore
	detector *StallDetector
	limiter  *rate.Limiter

	rounds         []*RoundRecord
	degradedStreak map[string]int
	anomalies      []string
	observers      []Observer

	logger *zap.Logger
	tracer trace.Tracer
}

// NewSession validates the configuration and assembles a session. An invalid
// configuration is fatal and never recovered.
func NewSession(proposal *Proposal, participants []Participant, cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	protocol, err := voting.NewProtocol(cfg.Voting)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RequestRate > 0 {
		burst := cfg.RequestBurst
		if burst < 1 {
			burst = len(participants)
		}
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), burst)
	}

	id := uuid.New().String()
	sessionLogger := logger.With(
		zap.String("component", "deliberation_session"),
		zap.String("session_id", id),
	)

	return &Session{
		id:           id,
		proposal:     proposal,
		participants: participants,
		cfg:          cfg,
		protocol:     protocol,
		store:        NewPositionStore(),
		detector: NewStallDetector(cfg.stallThreshold(),
			cfg.Stall.ConsecutiveRounds, cfg.MaxRounds, sessionLogger),
		limiter:        limiter,
		degradedStreak: make(map[string]int),
		logger:         sessionLogger,
		tracer:         otel.Tracer("boardflow/deliberation"),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// AddObserver registers a read-only observer. Must be called before Run.
func (s *Session) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Rounds returns a deep copy of the sealed round history.
func (s *Session) Rounds() []*RoundRecord {
	return cloneRounds(s.rounds)
}

// Run executes the deliberation to completion and returns the Decision. A
// session always terminates with a Decision, even on forced or degraded
// paths; only external cancellation and fatal start conditions also return an
// error.
func (s *Session) Run(ctx context.Context) (*Decision, error) {
	if len(s.participants) < 2 {
		err := types.NewError(types.ErrInsufficientParticipants,
			fmt.Sprintf("cannot deliberate with %d participant(s)", len(s.participants)))
		s.logger.Error("session aborted", zap.Error(err))
		return s.finish(OutcomeError, "", nil), err
	}

	s.logger.Info("deliberation started",
		zap.String("proposal", s.proposal.Title),
		zap.Int("participants", len(s.participants)),
		zap.Int("max_rounds", s.cfg.MaxRounds),
		zap.String("protocol", s.protocol.Name()),
	)

	for index := 0; index < s.cfg.MaxRounds; index++ {
		// Cancellation is honored only at round boundaries so that no
		// partial round is ever sealed.
		if err := ctx.Err(); err != nil {
			return s.abort(err)
		}

		record, err := s.runRound(ctx, index)
		if err != nil {
			return s.abort(err)
		}
		s.seal(record)

		// Termination predicate, in priority order.
		if record.Metric.Score >= s.cfg.MinConsensusThreshold {
			s.logger.Info("consensus reached",
				zap.Int("round", index),
				zap.Float64("score", record.Metric.Score),
				zap.String("band", string(record.Metric.Band)),
			)
			return s.finish(OutcomeApproved, "", nil), nil
		}
		if s.carryForwardExceeded() {
			s.logger.Warn("carry-forward limit reached, forcing vote",
				zap.Int("round", index))
			return s.votePhase(ctx, FlagCarryForwardLimit)
		}
		if index == s.cfg.MaxRounds-1 {
			return s.votePhase(ctx, "")
		}
		if s.detector.Signal(s.rounds) {
			return s.votePhase(ctx, FlagDeadlockedByStall)
		}
	}

	// Unreachable: the budget branch above always terminates the loop.
	return s.votePhase(ctx, "")
}

// runRound fans the position request out to every participant, waits on the
// fan-in barrier, applies the carry-forward policy, and computes the metric.
// The returned record is not yet sealed.
func (s *Session) runRound(ctx context.Context, index int) (*RoundRecord, error) {
	kind := roundKind(index, s.cfg.MaxRounds)

	ctx, span := s.tracer.Start(ctx, "deliberation.round",
		trace.WithAttributes(
			attribute.Int("round.index", index),
			attribute.String("round.kind", string(kind)),
		))
	defer span.End()

	history := cloneRounds(s.rounds)
	results := make([]*ParticipantPosition, len(s.participants))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.participants {
		g.Go(func() error {
			pos, err := s.requestPosition(gctx, p, kind, history)
			if err != nil {
				s.logger.Warn("position request failed",
					zap.Int("round", index),
					zap.String("participant", p.ID()),
					zap.Error(err),
				)
				return nil // recovered via carry-forward
			}
			results[i] = pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &RoundRecord{Index: index, Kind: kind}
	for i, p := range s.participants {
		pos := results[i]
		if pos == nil {
			pos = s.carryForward(p.ID(), index)
			record.Degraded = true
			record.CarriedForward = append(record.CarriedForward, p.ID())
			s.degradedStreak[p.ID()]++
		} else {
			s.normalize(pos, p.ID(), index)
			s.degradedStreak[p.ID()] = 0
		}
		s.store.Append(pos)
		record.Positions = append(record.Positions, *pos)
	}

	metric, err := Score(record.Positions)
	if err != nil {
		return nil, err
	}
	record.Metric = metric
	span.SetAttributes(
		attribute.Float64("consensus.score", metric.Score),
		attribute.String("consensus.band", string(metric.Band)),
		attribute.Bool("round.degraded", record.Degraded),
	)
	return record, nil
}

// requestPosition performs one rate-limited, deadline-bounded collaborator
// call.
func (s *Session) requestPosition(ctx context.Context, p Participant, kind RoundKind, history []*RoundRecord) (*ParticipantPosition, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.ParticipantTimeout)
	defer cancel()

	pos, err := p.Position(pctx, s.proposal, kind, history)
	if err != nil {
		return nil, types.WrapError(types.ErrParticipantTimeout, "position request failed", err)
	}
	if pos == nil {
		return nil, types.NewError(types.ErrParticipantTimeout, "participant returned no position")
	}
	return pos, nil
}

// normalize stamps engine-owned fields and clamps the support score.
func (s *Session) normalize(pos *ParticipantPosition, participantID string, round int) {
	pos.ParticipantID = participantID
	pos.Round = round
	pos.CarriedForward = false
	if pos.Support < 0 {
		pos.Support = 0
	}
	if pos.Support > 1 {
		pos.Support = 1
	}
	if pos.ReceivedAt.IsZero() {
		pos.ReceivedAt = time.Now()
	}
}

// carryForward substitutes the participant's last known position. At round 0,
// with nothing to carry, a neutral stance stands in so the round keeps a full
// position set.
func (s *Session) carryForward(participantID string, round int) *ParticipantPosition {
	pos, ok := s.store.Latest(participantID)
	if !ok {
		pos = &ParticipantPosition{
			ParticipantID: participantID,
			Support:       0.5,
		}
	}
	pos.Round = round
	pos.CarriedForward = true
	pos.ReceivedAt = time.Now()
	return pos
}

// seal appends the record to the history and notifies observers. The history
// is written only here, at round-seal time.
func (s *Session) seal(record *RoundRecord) {
	record.SealedAt = time.Now()
	s.rounds = append(s.rounds, record)

	s.logger.Info("round sealed",
		zap.Int("round", record.Index),
		zap.String("kind", string(record.Kind)),
		zap.Float64("score", record.Metric.Score),
		zap.String("band", string(record.Metric.Band)),
		zap.Bool("degraded", record.Degraded),
	)
	for _, o := range s.observers {
		o.RoundSealed(record.Clone())
	}
}

func (s *Session) carryForwardExceeded() bool {
	for _, streak := range s.degradedStreak {
		if streak >= carryForwardLimit {
			return true
		}
	}
	return false
}

// votePhase aggregates final preferences through the configured protocol.
func (s *Session) votePhase(ctx context.Context, flag string) (*Decision, error) {
	ctx, span := s.tracer.Start(ctx, "deliberation.voting",
		trace.WithAttributes(attribute.String("voting.protocol", s.protocol.Name())))
	defer span.End()

	s.logger.Info("entering voting phase",
		zap.String("protocol", s.protocol.Name()),
		zap.String("flag", flag),
	)

	tally, err := s.protocol.Decide(ctx, &participantCaster{session: s})
	if err != nil {
		if ctx.Err() != nil {
			return s.abort(ctx.Err())
		}
		s.logger.Error("voting failed", zap.Error(err))
		s.anomalies = append(s.anomalies, fmt.Sprintf("voting failed: %v", err))
		return s.finish(OutcomeError, flag, nil), err
	}

	outcome := Outcome(tally.Outcome)
	if flag == FlagCarryForwardLimit {
		outcome = OutcomeInconclusive
	}
	return s.finish(outcome, flag, tally), nil
}

// abort terminates the session on external cancellation. The sealed history
// stays intact; no partial round is recorded.
func (s *Session) abort(cause error) (*Decision, error) {
	err := types.WrapError(types.ErrSessionAborted, "session aborted", cause)
	s.logger.Warn("session aborted", zap.Error(cause), zap.Int("sealed_rounds", len(s.rounds)))
	return s.finish(OutcomeError, FlagAborted, nil), err
}

// finish creates the session's single Decision and notifies observers.
func (s *Session) finish(outcome Outcome, flag string, tally *voting.Tally) *Decision {
	decision := &Decision{
		SessionID:  s.id,
		ProposalID: s.proposal.ID,
		Outcome:    outcome,
		Flag:       flag,
		Tally:      tally,
		Rounds:     cloneRounds(s.rounds),
		Anomalies:  append([]string(nil), s.anomalies...),
		DecidedAt:  time.Now(),
	}
	if len(s.rounds) > 0 {
		decision.FinalMetric = s.rounds[len(s.rounds)-1].Metric
	}
	if tally != nil {
		decision.Anomalies = append(decision.Anomalies, tally.Anomalies...)
	}
	for _, r := range s.rounds {
		if len(r.CarriedForward) > 0 {
			if decision.CarriedForward == nil {
				decision.CarriedForward = make(map[int][]string)
			}
			decision.CarriedForward[r.Index] = append([]string(nil), r.CarriedForward...)
		}
	}

	s.logger.Info("deliberation terminated",
		zap.String("outcome", string(outcome)),
		zap.String("flag", flag),
		zap.Int("rounds", len(s.rounds)),
		zap.Float64("final_score", decision.FinalMetric.Score),
	)
	for _, o := range s.observers {
		o.DecisionReached(decision)
	}
	return decision
}

// participantCaster adapts the committee to the voting.Caster capability:
// one fan-out vote request per invocation.
type participantCaster struct {
	session *Session
}

// CastVotes implements voting.Caster. A failed or missing ballot counts as an
// abstention and is recorded as an anomaly rather than blocking the tally.
func (c *participantCaster) CastVotes(ctx context.Context, feedback *voting.Aggregate) ([]voting.Vote, error) {
	s := c.session
	history := cloneRounds(s.rounds)
	results := make([]*voting.Vote, len(s.participants))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.participants {
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(gctx); err != nil {
					return nil
				}
			}
			vctx, cancel := context.WithTimeout(gctx, s.cfg.ParticipantTimeout)
			defer cancel()

			vote, err := p.Vote(vctx, s.proposal, history, feedback)
			if err != nil || vote == nil {
				s.logger.Warn("vote request failed",
					zap.String("participant", p.ID()),
					zap.Error(err),
				)
				return nil
			}
			results[i] = vote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	votes := make([]voting.Vote, 0, len(s.participants))
	for i, p := range s.participants {
		vote := results[i]
		if vote == nil {
			s.anomalies = append(s.anomalies,
				fmt.Sprintf("%s: no ballot from %s, counted as abstention",
					types.ErrParticipantTimeout, p.ID()))
			vote = &voting.Vote{Choice: voting.ChoiceAbstain}
		}
		vote.ParticipantID = p.ID()
		if w, ok := s.cfg.Weights[p.ID()]; ok {
			vote.Weight = w
		}
		if vote.CastAt.IsZero() {
			vote.CastAt = time.Now()
		}
		votes = append(votes, *vote)
	}
	return votes, nil
}
