package rl

import (
	"fmt"

	"coderl/rl/grader"
)

// Default reward policy constants. Both are configuration knobs; these are
// the values used when nothing overrides them.
const (
	// DefaultQualityWeight keeps the pipeline backward compatible with a
	// pure correctness reward.
	DefaultQualityWeight = 0.0
	// DefaultNoCodeReward is paid out when the response contains no code
	// block, regardless of the quality weight.
	DefaultNoCodeReward = 0.0
)

// RewardConfig holds the reward combination policy.
type RewardConfig struct {
	// QualityWeight in [0,1]. 0 means pure correctness, 1 pure quality.
	QualityWeight float64 `yaml:"quality_weight" json:"quality_weight" mapstructure:"quality_weight"`
	// NoCodeReward is the fixed reward for responses with no extractable
	// code. The grader is never consulted on that path.
	NoCodeReward float64 `yaml:"no_code_reward" json:"no_code_reward" mapstructure:"no_code_reward"`
}

// DefaultRewardConfig returns the backward-compatible policy.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		QualityWeight: DefaultQualityWeight,
		NoCodeReward:  DefaultNoCodeReward,
	}
}

// Validate reports configuration errors. These are the only fatal class in
// the pipeline; everything downstream degrades instead of failing.
func (c RewardConfig) Validate() error {
	if c.QualityWeight < 0 || c.QualityWeight > 1 {
		return fmt.Errorf("quality_weight %v outside [0,1]", c.QualityWeight)
	}
	if c.NoCodeReward < 0 || c.NoCodeReward > 1 {
		return fmt.Errorf("no_code_reward %v outside [0,1]", c.NoCodeReward)
	}
	return nil
}

// Combine merges binary correctness and continuous quality into one scalar:
//
//	reward = (1-weight)*indicator(passed) + weight*quality
//
// It is pure and total; for weight in [0,1] and a clamped grade the result
// is always in [0,1].
func Combine(passed bool, grade grader.Grade, weight float64) float64 {
	correctness := 0.0
	if passed {
		correctness = 1.0
	}
	return (1-weight)*correctness + weight*grade.Score
}
