package config

import "time"

// Default limits and timings used throughout the orchestrator
const (
	// DefaultPerCallBudget is the wall-clock budget for one analysis call
	DefaultPerCallBudget = 40 * time.Second

	// DefaultActionBudget is the wall-clock budget for one dispatched action
	DefaultActionBudget = 8 * time.Second

	// DefaultMaxDepth is the maximum number of reasoning turns per session
	DefaultMaxDepth = 5

	// DefaultMaxFunctionCalls is the maximum dispatched actions per session
	DefaultMaxFunctionCalls = 8

	// DefaultMaxRepeatedActions is how many times the same action may repeat
	// within the repeat window before the loop is suspended
	DefaultMaxRepeatedActions = 3

	// DefaultRepeatWindow is how far back repeated-action detection looks
	DefaultRepeatWindow = 6

	// DefaultMaxSessions is the session store capacity
	DefaultMaxSessions = 100

	// DefaultIdleTimeout is how long an untouched session survives
	DefaultIdleTimeout = time.Hour

	// DefaultMaxHistory is the per-session exploration history cap
	DefaultMaxHistory = 100

	// DefaultRetryMaxAttempts is the retry budget for transient action failures
	DefaultRetryMaxAttempts = 3

	// DefaultRetryInitialDelay is the first retry backoff delay
	DefaultRetryInitialDelay = 200 * time.Millisecond

	// DefaultRetryMaxDelay caps the retry backoff delay
	DefaultRetryMaxDelay = 2 * time.Second

	// DefaultRetryBackoffMultiplier is the exponential backoff factor
	DefaultRetryBackoffMultiplier = 2.0

	// DefaultSweepInterval is how often the store sweeps idle sessions
	DefaultSweepInterval = time.Minute

	// DefaultMaxErrorBytes caps the submitted error description size
	DefaultMaxErrorBytes = 50 * 1024

	// DefaultMaxEvidenceFiles caps the number of evidence items per request
	DefaultMaxEvidenceFiles = 50

	// DefaultMaxEvidenceBytes caps the total evidence payload size
	DefaultMaxEvidenceBytes = 10 * 1024 * 1024

	// DefaultModel is the reasoning backend model identifier
	DefaultModel = "gpt-4o"
)
