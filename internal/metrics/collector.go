package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/boardflow/deliberation"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	// Round metrics
	roundsTotal    *prometheus.CounterVec
	roundDuration  *prometheus.HistogramVec
	consensusScore *prometheus.GaugeVec

	// Decision metrics
	decisionsTotal  *prometheus.CounterVec
	decisionRounds  prometheus.Histogram
	finalConsensus  prometheus.Histogram
	anomaliesTotal  prometheus.Counter
	carryForwards   *prometheus.CounterVec
	stallDetections prometheus.Counter
	sessionsAborted prometheus.Counter

	// Voting metrics
	votesTotal   *prometheus.CounterVec
	delphiRounds prometheus.Histogram

	// Decision store metrics
	storeOperations *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the engine instruments under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of sealed deliberation rounds",
		},
		[]string{"kind", "degraded"},
	)

	c.roundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall-clock duration of one deliberation round",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	c.consensusScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consensus_score",
			Help:      "Latest consensus score per session",
		},
		[]string{"session_id"},
	)

	c.decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of terminal decisions",
		},
		[]string{"outcome", "flag"},
	)

	c.decisionRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_rounds",
			Help:      "Number of rounds a session took to decide",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10, 15, 20},
		},
	)

	c.finalConsensus = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_consensus_score",
			Help:      "Distribution of final consensus scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	c.anomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Total recovered irregularities recorded on decisions",
		},
	)

	c.carryForwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carry_forwards_total",
			Help:      "Positions substituted from a participant's last known stance",
		},
		[]string{"participant_id"},
	)

	c.stallDetections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stall_detections_total",
			Help:      "Sessions forced to voting by the stall detector",
		},
	)

	c.sessionsAborted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_aborted_total",
			Help:      "Sessions terminated by external cancellation",
		},
	)

	c.votesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Ballots accepted during voting phases",
		},
		[]string{"protocol", "choice"},
	)

	c.delphiRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delphi_rounds",
			Help:      "Delphi re-vote rounds until convergence",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	c.storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Decision store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Decision store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordRound records one sealed round.
func (c *Collector) RecordRound(record *deliberation.RoundRecord, duration time.Duration) {
	degraded := "false"
	if record.Degraded {
		degraded = "true"
	}
	c.roundsTotal.WithLabelValues(string(record.Kind), degraded).Inc()
	c.roundDuration.WithLabelValues(string(record.Kind)).Observe(duration.Seconds())
	for _, participantID := range record.CarriedForward {
		c.carryForwards.WithLabelValues(participantID).Inc()
	}
}

// SetConsensusScore publishes the latest score for a session.
func (c *Collector) SetConsensusScore(sessionID string, score float64) {
	c.consensusScore.WithLabelValues(sessionID).Set(score)
}

// RecordDecision records a terminal decision with its tally, if any.
func (c *Collector) RecordDecision(decision *deliberation.Decision) {
	c.decisionsTotal.WithLabelValues(string(decision.Outcome), decision.Flag).Inc()
	c.decisionRounds.Observe(float64(len(decision.Rounds)))
	c.finalConsensus.Observe(decision.FinalMetric.Score)
	c.anomaliesTotal.Add(float64(len(decision.Anomalies)))

	switch decision.Flag {
	case deliberation.FlagDeadlockedByStall:
		c.stallDetections.Inc()
	case deliberation.FlagAborted:
		c.sessionsAborted.Inc()
	}

	if tally := decision.Tally; tally != nil {
		for _, v := range tally.Votes {
			c.votesTotal.WithLabelValues(tally.Protocol, string(v.Choice)).Inc()
		}
		if tally.DelphiRounds > 0 {
			c.delphiRounds.Observe(float64(tally.DelphiRounds))
		}
	}
}

// RecordStoreOperation records one decision store call.
func (c *Collector) RecordStoreOperation(backend, operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeOperations.WithLabelValues(backend, operation, status).Inc()
	c.storeOpDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// Observer returns a session observer feeding this collector. Round durations
// are measured between consecutive observer callbacks.
func (c *Collector) Observer() deliberation.Observer {
	return &observer{collector: c, started: time.Now()}
}

type observer struct {
	collector *Collector
	started   time.Time
}

func (o *observer) RoundSealed(record *deliberation.RoundRecord) {
	now := time.Now()
	o.collector.RecordRound(record, now.Sub(o.started))
	o.started = now
}

func (o *observer) DecisionReached(decision *deliberation.Decision) {
	o.collector.RecordDecision(decision)
	o.collector.SetConsensusScore(decision.SessionID, decision.FinalMetric.Score)
}
