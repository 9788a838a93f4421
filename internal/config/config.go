// Package config holds the orchestrator's tunable settings. Defaults are
// compiled in, an optional YAML file overlays them, and environment
// variables win over both.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SafetyConfig bounds one analysis call and one session.
type SafetyConfig struct {
	// PerCallBudget is the wall-clock budget for one analysis call
	PerCallBudget time.Duration `yaml:"per_call_budget"`
	// ActionBudget is the wall-clock budget for one dispatched action
	ActionBudget time.Duration `yaml:"action_budget"`
	// MaxDepth is the maximum reasoning turns per session
	MaxDepth int `yaml:"max_depth"`
	// MaxFunctionCalls is the maximum dispatched actions per session
	MaxFunctionCalls int `yaml:"max_function_calls"`
	// MaxRepeatedActions is the repeated-action threshold
	MaxRepeatedActions int `yaml:"max_repeated_actions"`
	// RepeatWindow is how far back repeated-action detection looks
	RepeatWindow int `yaml:"repeat_window"`
}

// SessionConfig controls the session store.
type SessionConfig struct {
	// MaxSessions is the store capacity
	MaxSessions int `yaml:"max_sessions"`
	// IdleTimeout is how long an untouched session survives
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// MaxHistory is the per-session exploration history cap
	MaxHistory int `yaml:"max_history"`
	// SweepInterval is how often idle sessions are swept
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RetryConfig controls retry behavior for transient action failures.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget per action
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the first backoff delay
	InitialDelay time.Duration `yaml:"initial_delay"`
	// MaxDelay caps the backoff delay
	MaxDelay time.Duration `yaml:"max_delay"`
	// BackoffMultiplier is the exponential backoff factor
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// InputConfig bounds submitted request payloads.
type InputConfig struct {
	// MaxErrorBytes caps the error description size
	MaxErrorBytes int `yaml:"max_error_bytes"`
	// MaxEvidenceFiles caps evidence items per request
	MaxEvidenceFiles int `yaml:"max_evidence_files"`
	// MaxEvidenceBytes caps total evidence payload size
	MaxEvidenceBytes int `yaml:"max_evidence_bytes"`
}

// ReasonerConfig selects and authenticates the reasoning backend.
type ReasonerConfig struct {
	// Model is the backend model identifier
	Model string `yaml:"model"`
	// APIKey authenticates against the backend. Prefer the environment
	// variable over the YAML file for this one.
	APIKey string `yaml:"api_key"`
}

// Config is the full orchestrator configuration.
type Config struct {
	Safety   SafetyConfig   `yaml:"safety"`
	Session  SessionConfig  `yaml:"session"`
	Retry    RetryConfig    `yaml:"retry"`
	Input    InputConfig    `yaml:"input"`
	Reasoner ReasonerConfig `yaml:"reasoner"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Safety: SafetyConfig{
			PerCallBudget:      DefaultPerCallBudget,
			ActionBudget:       DefaultActionBudget,
			MaxDepth:           DefaultMaxDepth,
			MaxFunctionCalls:   DefaultMaxFunctionCalls,
			MaxRepeatedActions: DefaultMaxRepeatedActions,
			RepeatWindow:       DefaultRepeatWindow,
		},
		Session: SessionConfig{
			MaxSessions:   DefaultMaxSessions,
			IdleTimeout:   DefaultIdleTimeout,
			MaxHistory:    DefaultMaxHistory,
			SweepInterval: DefaultSweepInterval,
		},
		Retry: RetryConfig{
			MaxAttempts:       DefaultRetryMaxAttempts,
			InitialDelay:      DefaultRetryInitialDelay,
			MaxDelay:          DefaultRetryMaxDelay,
			BackoffMultiplier: DefaultRetryBackoffMultiplier,
		},
		Input: InputConfig{
			MaxErrorBytes:    DefaultMaxErrorBytes,
			MaxEvidenceFiles: DefaultMaxEvidenceFiles,
			MaxEvidenceBytes: DefaultMaxEvidenceBytes,
		},
		Reasoner: ReasonerConfig{
			Model: DefaultModel,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays CLOUDTRIAGE_* environment variables.
func (c *Config) applyEnv() {
	envDuration("CLOUDTRIAGE_PER_CALL_BUDGET", &c.Safety.PerCallBudget)
	envDuration("CLOUDTRIAGE_ACTION_BUDGET", &c.Safety.ActionBudget)
	envInt("CLOUDTRIAGE_MAX_DEPTH", &c.Safety.MaxDepth)
	envInt("CLOUDTRIAGE_MAX_FUNCTION_CALLS", &c.Safety.MaxFunctionCalls)
	envInt("CLOUDTRIAGE_MAX_SESSIONS", &c.Session.MaxSessions)
	envDuration("CLOUDTRIAGE_IDLE_TIMEOUT", &c.Session.IdleTimeout)
	envDuration("CLOUDTRIAGE_SWEEP_INTERVAL", &c.Session.SweepInterval)
	envString("CLOUDTRIAGE_MODEL", &c.Reasoner.Model)
	envString("OPENAI_API_KEY", &c.Reasoner.APIKey)
}

// Validate rejects configurations that would disable the safety bounds.
func (c *Config) Validate() error {
	if c.Safety.PerCallBudget <= 0 {
		return fmt.Errorf("safety.per_call_budget must be positive")
	}
	if c.Safety.ActionBudget <= 0 {
		return fmt.Errorf("safety.action_budget must be positive")
	}
	if c.Safety.MaxDepth <= 0 {
		return fmt.Errorf("safety.max_depth must be positive")
	}
	if c.Safety.MaxFunctionCalls <= 0 {
		return fmt.Errorf("safety.max_function_calls must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session.max_sessions must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
