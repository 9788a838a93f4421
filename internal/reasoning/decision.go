// Package reasoning defines the decision contract between the analysis
// loop and its reasoning backend, plus an OpenAI-backed implementation.
package reasoning

import (
	"context"
	"errors"

	"github.com/cloudtriage/cloudtriage/internal/dispatch"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

// ErrUnparseable is returned when the backend's output cannot be mapped
// onto one of the four decision variants. The orchestrator retries once
// and then fails the session rather than looping on garbage.
var ErrUnparseable = errors.New("reasoner output unparseable")

// DecisionKind enumerates the four choices a reasoner can make per turn.
type DecisionKind int

const (
	// DecisionInvoke requests execution of a named diagnostic action.
	DecisionInvoke DecisionKind = iota
	// DecisionRequestInfo asks the user for additional information.
	DecisionRequestInfo
	// DecisionConclude declares the investigation finished with a result.
	DecisionConclude
	// DecisionExhausted declares the investigation finished without one.
	DecisionExhausted
)

// Decision is the tagged variant produced by a reasoner each turn.
// Exactly the fields of the active variant are meaningful.
type Decision struct {
	Kind DecisionKind

	// DecisionInvoke
	Action    string
	Params    map[string]any
	Rationale string

	// DecisionRequestInfo
	Question string

	// DecisionConclude
	Summary string

	// DecisionExhausted
	Reason string
}

// Reasoner proposes the next step of an investigation given the session's
// accumulated memory and the available diagnostic actions.
type Reasoner interface {
	ProposeNextStep(ctx context.Context, s *session.DebugSession, actions []dispatch.Definition) (Decision, error)
}
