// Package agent contains the analysis loop orchestrator: the state
// machine that drives a bounded investigation by coordinating the safety
// controller, the reasoning backend, and the action dispatcher, and the
// outcome builder that turns its terminal states into responses.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/dispatch"
	"github.com/cloudtriage/cloudtriage/internal/observe"
	"github.com/cloudtriage/cloudtriage/internal/reasoning"
	"github.com/cloudtriage/cloudtriage/internal/safety"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Engine runs the per-session analysis loop. It is the only component
// that mutates session state; the dispatcher and safety controller stay
// side-effect free on the session.
type Engine struct {
	store    *session.Store
	safety   *safety.Controller
	executor *dispatch.Executor
	registry *dispatch.Registry
	reasoner reasoning.Reasoner
	metrics  *observe.Metrics
	clock    Clock
	logger   *slog.Logger
}

// NewEngine wires an analysis engine from its collaborators.
func NewEngine(
	store *session.Store,
	controller *safety.Controller,
	executor *dispatch.Executor,
	registry *dispatch.Registry,
	reasoner reasoning.Reasoner,
	metrics *observe.Metrics,
	clock Clock,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = safety.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		safety:   controller,
		executor: executor,
		registry: registry,
		reasoner: reasoner,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
	}
}

// Run drives the analysis loop for one call (fresh or continuation) until
// a stopping condition is reached, then builds the response and updates
// or purges the session. The caller must hold the session's store lock
// for the duration. callStart anchors the per-call time budget.
func (e *Engine) Run(ctx context.Context, s *session.DebugSession, id auth.Identity, callStart time.Time) Response {
	s.Status = session.StatusActive
	defs := e.registry.Definitions()
	decisionRetried := false

	for {
		// Turn boundary: explicit cancellation wins over everything else.
		if s.Cancelled() {
			return e.fail(s, "analysis cancelled by the caller")
		}

		verdict := e.safety.AllowNextTurn(s, callStart)
		if !verdict.Allow {
			return e.suspendBudget(s, verdict.Reason)
		}

		e.safety.RecordTurn(s)
		e.metrics.RecordTurn()

		decision, err := e.reasoner.ProposeNextStep(ctx, s, defs)
		if err != nil {
			e.logger.WarnContext(ctx, "reasoner error",
				"trace_id", s.TraceID,
				"error", err,
				"retried", decisionRetried,
			)
			if decisionRetried {
				return e.fail(s, fmt.Sprintf("reasoning backend produced no usable decision after retry: %v", err))
			}
			// One bounded retry; the wasted turn still counts toward
			// depth and the time budget.
			decisionRetried = true
			s.AppendNote(fmt.Sprintf("decision discarded, retrying once: %v", err), e.clock.Now())
			continue
		}

		switch decision.Kind {
		case reasoning.DecisionInvoke:
			e.dispatchAction(ctx, s, id, decision)
			decisionRetried = false

		case reasoning.DecisionRequestInfo:
			return e.suspendRequest(s, decision.Question)

		case reasoning.DecisionConclude:
			return e.conclude(s, decision.Summary)

		case reasoning.DecisionExhausted:
			return e.exhausted(s, decision.Reason)

		default:
			// Unknown variant from a future reasoner build: treat like an
			// unparseable decision rather than looping silently.
			if decisionRetried {
				return e.fail(s, fmt.Sprintf("reasoner returned unknown decision kind %d", decision.Kind))
			}
			decisionRetried = true
			s.AppendNote(fmt.Sprintf("unknown decision kind %d, retrying once", decision.Kind), e.clock.Now())
		}
	}
}

// dispatchAction executes one decided action and folds its result, or its
// classified failure, into the session memory. Dispatcher errors are
// findings, never orchestrator failures: the reasoner sees them next turn
// and may route around the failed action.
func (e *Engine) dispatchAction(ctx context.Context, s *session.DebugSession, id auth.Identity, decision reasoning.Decision) {
	started := e.clock.Now()
	result, actionErr := e.executor.Execute(ctx, decision.Action, decision.Params, id)
	elapsed := e.clock.Now().Sub(started)
	e.safety.RecordFunctionCall(s)

	if actionErr != nil {
		e.metrics.RecordAction(decision.Action, string(actionErr.Kind), elapsed)
		s.AppendAction(decision.Action, nil, string(actionErr.Kind), actionErr.Summary(), e.clock.Now())
		e.logger.InfoContext(ctx, "action failed",
			"trace_id", s.TraceID,
			"action", decision.Action,
			"error_kind", string(actionErr.Kind),
			"duration_ms", elapsed.Milliseconds(),
		)
		return
	}

	e.metrics.RecordAction(decision.Action, "ok", elapsed)
	s.AppendAction(decision.Action, result, "", summarizeResult(decision, result), e.clock.Now())
	if finding, ok := result["finding"].(string); ok && finding != "" {
		s.AppendFinding(finding, e.clock.Now())
	}
	e.logger.InfoContext(ctx, "action executed",
		"trace_id", s.TraceID,
		"action", decision.Action,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// summarizeResult renders a short history line for a successful action.
func summarizeResult(decision reasoning.Decision, result map[string]any) string {
	if summary, ok := result["summary"].(string); ok && summary != "" {
		return summary
	}
	if decision.Rationale != "" {
		return decision.Rationale
	}
	return fmt.Sprintf("completed with %d result fields", len(result))
}
