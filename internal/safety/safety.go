// Package safety enforces the time, depth, and call-count budgets that
// keep an autonomous analysis loop bounded. The controller is purely
// evaluative: it never mutates orchestration state beyond incrementing
// session counters, which keeps it trivially testable in isolation.
package safety

import (
	"fmt"
	"time"

	"github.com/cloudtriage/cloudtriage/internal/session"
)

// Clock abstracts time so budget checks are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Limits holds the configured budgets for one analysis call. All limits
// are configuration inputs; nothing here is hardcoded policy.
type Limits struct {
	// PerCallBudget is the wall-clock budget for a single call. Each
	// continuation gets a fresh budget; it is not cumulative.
	PerCallBudget time.Duration
	// ActionBudget bounds a single dispatched action so one runaway
	// action cannot silently consume the whole per-call budget.
	ActionBudget time.Duration
	// MaxDepth caps orchestrator turns per session lifetime.
	MaxDepth int
	// MaxFunctionCalls caps dispatched actions per session lifetime.
	MaxFunctionCalls int
	// MaxRepeatedActions stops the loop when one action dominates the
	// recent history, a sign the reasoner is going in circles.
	MaxRepeatedActions int
	// RepeatWindow is how many recent actions the repetition check scans.
	RepeatWindow int
}

// Verdict is the result of a budget evaluation before a turn starts.
type Verdict struct {
	Allow  bool
	Reason string
}

// Controller evaluates whether a session may keep running. It is
// stateless apart from its configuration and requires no locking.
type Controller struct {
	limits Limits
	clock  Clock
}

// NewController creates a safety controller with the given limits.
func NewController(limits Limits, clock Clock) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Controller{limits: limits, clock: clock}
}

// Limits returns the configured limits.
func (c *Controller) Limits() Limits { return c.limits }

// AllowNextTurn decides whether another orchestrator turn may start.
// callStart is the start of the current call, not the session: the time
// budget resets on every continuation so a resumed analysis is never
// penalized for work done in earlier calls. The check runs before a turn
// starts and never interrupts one mid-flight.
func (c *Controller) AllowNextTurn(s *session.DebugSession, callStart time.Time) Verdict {
	if elapsed := c.clock.Now().Sub(callStart); elapsed > c.limits.PerCallBudget {
		return Verdict{Reason: fmt.Sprintf("time budget exhausted: %s elapsed, %s allowed", elapsed.Round(time.Millisecond), c.limits.PerCallBudget)}
	}
	if s.Depth >= c.limits.MaxDepth {
		return Verdict{Reason: fmt.Sprintf("depth limit reached: %d of %d turns used", s.Depth, c.limits.MaxDepth)}
	}
	if s.FunctionCallCount >= c.limits.MaxFunctionCalls {
		return Verdict{Reason: fmt.Sprintf("function call limit reached: %d of %d calls used", s.FunctionCallCount, c.limits.MaxFunctionCalls)}
	}
	if name, ok := c.repeatedAction(s); ok {
		return Verdict{Reason: fmt.Sprintf("action %q repeated more than %d times recently", name, c.limits.MaxRepeatedActions)}
	}
	return Verdict{Allow: true}
}

// repeatedAction reports whether any single action dominates the recent
// exploration history beyond the configured threshold.
func (c *Controller) repeatedAction(s *session.DebugSession) (string, bool) {
	if c.limits.MaxRepeatedActions <= 0 {
		return "", false
	}
	window := c.limits.RepeatWindow
	if window <= 0 {
		window = c.limits.MaxRepeatedActions * 2
	}
	counts := make(map[string]int)
	for _, name := range s.RecentActionNames(window) {
		counts[name]++
		if counts[name] > c.limits.MaxRepeatedActions {
			return name, true
		}
	}
	return "", false
}

// RecordTurn increments the session's turn depth. Depth never decreases
// and resets only on fresh session creation.
func (c *Controller) RecordTurn(s *session.DebugSession) {
	s.Depth++
}

// RecordFunctionCall increments the session's dispatched action counter.
func (c *Controller) RecordFunctionCall(s *session.DebugSession) {
	s.FunctionCallCount++
}

// ActionBudget returns the per-action execution budget.
func (c *Controller) ActionBudget() time.Duration {
	return c.limits.ActionBudget
}
