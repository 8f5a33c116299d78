package deliberation

import (
	"fmt"
	"time"

	"github.com/BaSui01/boardflow/types"
	"github.com/BaSui01/boardflow/voting"
)

// StallOptions parametrizes the stall detector.
type StallOptions struct {
	// Threshold is the nested stall threshold. When set (> 0) it governs
	// the detector; otherwise the session falls back to the top-level
	// Config.StallDetectionThreshold. Both are exposed because deployed
	// configurations historically carried both knobs with different
	// values; see DESIGN.md.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// ConsecutiveRounds is the number of qualifying transitions required
	// before a stall is signalled.
	ConsecutiveRounds int `json:"consecutive_rounds" yaml:"consecutive_rounds"`
}

// Config parametrizes one deliberation session. All options are named and
// overridable per session.
type Config struct {
	MaxRounds               int           `json:"max_rounds" yaml:"max_rounds"`
	MinConsensusThreshold   float64       `json:"min_consensus_threshold" yaml:"min_consensus_threshold"`
	StallDetectionThreshold float64       `json:"stall_detection_threshold" yaml:"stall_detection_threshold"`
	Stall                   StallOptions  `json:"stall" yaml:"stall"`
	ParticipantTimeout      time.Duration `json:"participant_timeout" yaml:"participant_timeout"`

	Voting voting.Config `json:"voting" yaml:"voting"`

	// Weights overrides participant vote weights by participant ID.
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`

	// RequestRate throttles outbound collaborator requests per second;
	// 0 disables throttling. RequestBurst defaults to the committee size.
	RequestRate  float64 `json:"request_rate" yaml:"request_rate"`
	RequestBurst int     `json:"request_burst" yaml:"request_burst"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:               5,
		MinConsensusThreshold:   0.75,
		StallDetectionThreshold: 0.95,
		Stall: StallOptions{
			Threshold:         0.9,
			ConsecutiveRounds: 2,
		},
		ParticipantTimeout: 60 * time.Second,
		Voting: voting.Config{
			Protocol:                   voting.ProtocolSimpleMajority,
			Threshold:                  0.75,
			DelphiMaxRounds:            3,
			DelphiConvergenceThreshold: 0.1,
		},
	}
}

// Validate checks the configuration. Violations are fatal at session start.
func (c Config) Validate() error {
	if c.MaxRounds < 1 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("max_rounds must be >= 1, got %d", c.MaxRounds))
	}
	if c.MinConsensusThreshold < 0 || c.MinConsensusThreshold > 1 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("min_consensus_threshold must be in [0,1], got %v", c.MinConsensusThreshold))
	}
	if c.StallDetectionThreshold < 0 || c.StallDetectionThreshold > 1 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("stall_detection_threshold must be in [0,1], got %v", c.StallDetectionThreshold))
	}
	if c.Stall.Threshold < 0 || c.Stall.Threshold > 1 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("stall.threshold must be in [0,1], got %v", c.Stall.Threshold))
	}
	if c.Stall.ConsecutiveRounds < 1 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("stall.consecutive_rounds must be >= 1, got %d", c.Stall.ConsecutiveRounds))
	}
	if c.ParticipantTimeout <= 0 {
		return types.NewError(types.ErrConfigInvalid, "participant_timeout must be positive")
	}
	if c.Voting.Threshold < 0 || c.Voting.Threshold > 1 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("voting.threshold must be in [0,1], got %v", c.Voting.Threshold))
	}
	for id, w := range c.Weights {
		if w <= 0 {
			return types.NewError(types.ErrConfigInvalid,
				fmt.Sprintf("weight for %s must be positive, got %v", id, w))
		}
	}
	return nil
}

// stallThreshold resolves the governing stall threshold: the nested option
// wins when set, the top-level knob is the fallback.
func (c Config) stallThreshold() float64 {
	if c.Stall.Threshold > 0 {
		return c.Stall.Threshold
	}
	return c.StallDetectionThreshold
}
