// Package config loads and validates the pipeline configuration from a
// YAML file, environment variables, and defaults. Validation errors here
// are the only fatal error class in the system.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"coderl/internal/observability"
	"coderl/rl"
	"coderl/rl/grader"
)

// Config is the full runtime configuration.
type Config struct {
	// LogDir holds the run identity file and the episode trace.
	LogDir string `mapstructure:"log_dir"`
	// Workers bounds batch concurrency.
	Workers int `mapstructure:"workers"`

	Reward rl.RewardConfig `mapstructure:"reward"`

	Grader GraderConfig `mapstructure:"grader"`

	Sandbox SandboxConfig `mapstructure:"sandbox"`

	Log     observability.LogConfig     `mapstructure:"log"`
	Metrics observability.MetricsConfig `mapstructure:"metrics"`
}

// GraderConfig selects and tunes the quality grading oracle.
type GraderConfig struct {
	// Backend is the oracle CLI: "claude" or "gemini".
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
	// TimeoutSec bounds one oracle invocation.
	TimeoutSec int `mapstructure:"timeout_sec"`
	// NeutralScore is used when nothing numeric is recoverable.
	NeutralScore float64 `mapstructure:"neutral_score"`
	// RubricPath optionally overrides the compiled-in rubric.
	RubricPath string `mapstructure:"rubric_path"`

	Cache grader.CacheConfig `mapstructure:"cache"`
}

// Timeout returns the oracle timeout as a duration.
func (g GraderConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

// SandboxConfig configures the default command-backed sandbox adapter.
type SandboxConfig struct {
	Command    string   `mapstructure:"command"`
	Args       []string `mapstructure:"args"`
	TimeoutSec int      `mapstructure:"timeout_sec"`
}

// Timeout returns the harness timeout as a duration.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_dir", "./coderl-logs")
	v.SetDefault("workers", 8)

	v.SetDefault("reward.quality_weight", rl.DefaultQualityWeight)
	v.SetDefault("reward.no_code_reward", rl.DefaultNoCodeReward)

	v.SetDefault("grader.backend", grader.BackendClaude)
	v.SetDefault("grader.timeout_sec", 120)
	v.SetDefault("grader.neutral_score", grader.DefaultNeutralScore)
	v.SetDefault("grader.cache.sample_rate", 1.0)
	v.SetDefault("grader.cache.cache_size", 10000)
	v.SetDefault("grader.cache.default_score", 0.0)

	v.SetDefault("sandbox.timeout_sec", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.prometheus_port", 9464)
}

// Load reads configuration from the given file (optional), the CODERL_*
// environment, and defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CODERL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("coderl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.coderl")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every bounded parameter. Anything out of range here
// terminates the run before any episode is scored.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LogDir) == "" {
		return fmt.Errorf("log_dir is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if err := c.Reward.Validate(); err != nil {
		return err
	}
	switch c.Grader.Backend {
	case grader.BackendClaude, grader.BackendGemini:
	default:
		return fmt.Errorf("unknown grader backend %q", c.Grader.Backend)
	}
	if c.Grader.TimeoutSec <= 0 {
		return fmt.Errorf("grader.timeout_sec must be positive, got %d", c.Grader.TimeoutSec)
	}
	if c.Grader.NeutralScore < 0 || c.Grader.NeutralScore > 1 {
		return fmt.Errorf("grader.neutral_score %v outside [0,1]", c.Grader.NeutralScore)
	}
	if err := c.Grader.Cache.Validate(); err != nil {
		return err
	}
	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got %d", c.Sandbox.TimeoutSec)
	}
	return nil
}
