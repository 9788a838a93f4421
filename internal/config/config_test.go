package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Safety.PerCallBudget != 40*time.Second {
		t.Errorf("unexpected per-call budget %s", cfg.Safety.PerCallBudget)
	}
	if cfg.Safety.MaxDepth != 5 {
		t.Errorf("unexpected max depth %d", cfg.Safety.MaxDepth)
	}
	if cfg.Safety.MaxFunctionCalls != 8 {
		t.Errorf("unexpected max function calls %d", cfg.Safety.MaxFunctionCalls)
	}
	if cfg.Session.MaxSessions != 100 {
		t.Errorf("unexpected max sessions %d", cfg.Session.MaxSessions)
	}
	if cfg.Session.IdleTimeout != time.Hour {
		t.Errorf("unexpected idle timeout %s", cfg.Session.IdleTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
safety:
  max_depth: 7
  per_call_budget: 60s
session:
  max_sessions: 25
reasoner:
  model: gpt-4o-mini
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Safety.MaxDepth != 7 {
		t.Errorf("yaml override lost: max_depth = %d", cfg.Safety.MaxDepth)
	}
	if cfg.Safety.PerCallBudget != 60*time.Second {
		t.Errorf("yaml override lost: per_call_budget = %s", cfg.Safety.PerCallBudget)
	}
	if cfg.Session.MaxSessions != 25 {
		t.Errorf("yaml override lost: max_sessions = %d", cfg.Session.MaxSessions)
	}
	if cfg.Reasoner.Model != "gpt-4o-mini" {
		t.Errorf("yaml override lost: model = %s", cfg.Reasoner.Model)
	}
	// Untouched values keep their defaults.
	if cfg.Safety.MaxFunctionCalls != DefaultMaxFunctionCalls {
		t.Errorf("default lost: max_function_calls = %d", cfg.Safety.MaxFunctionCalls)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("safety:\n  max_depth: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CLOUDTRIAGE_MAX_DEPTH", "3")
	t.Setenv("CLOUDTRIAGE_IDLE_TIMEOUT", "30m")
	t.Setenv("CLOUDTRIAGE_MODEL", "gpt-4.1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Safety.MaxDepth != 3 {
		t.Errorf("env should win over yaml: max_depth = %d", cfg.Safety.MaxDepth)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("env override lost: idle_timeout = %s", cfg.Session.IdleTimeout)
	}
	if cfg.Reasoner.Model != "gpt-4.1" {
		t.Errorf("env override lost: model = %s", cfg.Reasoner.Model)
	}
}

func TestInvalidEnvValuesIgnored(t *testing.T) {
	t.Setenv("CLOUDTRIAGE_MAX_DEPTH", "not-a-number")
	t.Setenv("CLOUDTRIAGE_IDLE_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Safety.MaxDepth != DefaultMaxDepth {
		t.Errorf("garbage env value should be ignored, got %d", cfg.Safety.MaxDepth)
	}
	if cfg.Session.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("garbage env value should be ignored, got %s", cfg.Session.IdleTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestValidateRejectsDisabledLimits(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Safety.PerCallBudget = 0 },
		func(c *Config) { c.Safety.ActionBudget = -time.Second },
		func(c *Config) { c.Safety.MaxDepth = 0 },
		func(c *Config) { c.Safety.MaxFunctionCalls = 0 },
		func(c *Config) { c.Session.MaxSessions = 0 },
		func(c *Config) { c.Session.IdleTimeout = 0 },
		func(c *Config) { c.Retry.MaxAttempts = 0 },
	} {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected validation to reject %+v", cfg)
		}
	}
}
