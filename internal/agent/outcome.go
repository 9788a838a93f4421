package agent

import (
	"fmt"
	"strings"

	"github.com/cloudtriage/cloudtriage/internal/session"
)

// Status is the caller-visible outcome of one analysis call.
type Status string

const (
	// StatusDone means the investigation concluded with a result.
	StatusDone Status = "done"
	// StatusRequest means the loop needs information from the user.
	StatusRequest Status = "request"
	// StatusContinue means the budget ran out; continue to resume.
	StatusContinue Status = "continue"
	// StatusFail means the investigation ended without a result.
	StatusFail Status = "fail"
)

// Response is the contract returned for every analysis call. Whatever
// happens internally, the caller always receives one of the four statuses
// with a human-readable message, never a raw error.
type Response struct {
	Status   Status   `json:"status"`
	TraceID  string   `json:"trace_id"`
	Message  string   `json:"message"`
	Progress int      `json:"progress,omitempty"`
	Process  []string `json:"debugging_process,omitempty"`
	Actions  []string `json:"actions_to_take,omitempty"`
}

// conclude maps the Concluding state: session done and evicted.
func (e *Engine) conclude(s *session.DebugSession, summary string) Response {
	s.Status = session.StatusDone
	e.store.Save(s)
	e.metrics.RecordOutcome(string(StatusDone))

	return Response{
		Status:   StatusDone,
		TraceID:  s.TraceID,
		Message:  summary,
		Progress: 100,
		Process:  processExcerpt(s),
		Actions:  recommendedActions(s),
	}
}

// exhausted maps the Failing state reached by the reasoner's own
// declaration: accumulated findings plus the failure rationale.
func (e *Engine) exhausted(s *session.DebugSession, reason string) Response {
	message := "The investigation could not determine a root cause: " + reason
	if findings := s.Findings(); len(findings) > 0 {
		message += "\n\nPartial findings:\n- " + strings.Join(findings, "\n- ")
	}
	return e.failWithMessage(s, message)
}

// fail maps internal failures (cancellation, unparseable reasoning) onto
// the fail outcome with a diagnostic note.
func (e *Engine) fail(s *session.DebugSession, note string) Response {
	return e.failWithMessage(s, "Analysis failed: "+note)
}

func (e *Engine) failWithMessage(s *session.DebugSession, message string) Response {
	s.Status = session.StatusFailed
	e.store.Save(s)
	e.metrics.RecordOutcome(string(StatusFail))

	return Response{
		Status:   StatusFail,
		TraceID:  s.TraceID,
		Message:  message,
		Progress: e.progress(s),
		Process:  processExcerpt(s),
	}
}

// suspendRequest maps Suspending-with-request: the session is retained
// and the caller is asked to continue with the requested information.
func (e *Engine) suspendRequest(s *session.DebugSession, question string) Response {
	s.AppendNote("suspended awaiting user input: "+question, e.clock.Now())
	s.Status = session.StatusSuspended
	e.store.Save(s)
	e.metrics.RecordOutcome(string(StatusRequest))

	return Response{
		Status:   StatusRequest,
		TraceID:  s.TraceID,
		Message:  question,
		Progress: e.progress(s),
	}
}

// suspendBudget maps Suspending-from-budget-exhaustion: the session is
// retained and the caller may continue with the same trace ID. Budget
// exhaustion is never an error.
func (e *Engine) suspendBudget(s *session.DebugSession, reason string) Response {
	s.AppendNote("suspended: "+reason, e.clock.Now())
	s.Status = session.StatusSuspended
	e.store.Save(s)
	e.metrics.RecordOutcome(string(StatusContinue))

	return Response{
		Status:   StatusContinue,
		TraceID:  s.TraceID,
		Message:  fmt.Sprintf("Analysis paused (%s). Send a continuation request with this trace ID to resume.", reason),
		Progress: e.progress(s),
		Process:  processExcerpt(s),
	}
}

// progress derives a coarse indicator from depth against the configured
// maximum. It is informational only, never required for correctness.
func (e *Engine) progress(s *session.DebugSession) int {
	maxDepth := e.safety.Limits().MaxDepth
	if maxDepth <= 0 {
		return 0
	}
	p := s.Depth * 100 / maxDepth
	if p > 100 {
		p = 100
	}
	return p
}

// processExcerptLimit caps how much history is echoed back to the caller.
const processExcerptLimit = 10

// processExcerpt renders the tail of the exploration history as a
// step-by-step account of the investigation.
func processExcerpt(s *session.DebugSession) []string {
	start := 0
	if len(s.History) > processExcerptLimit {
		start = len(s.History) - processExcerptLimit
	}
	var out []string
	for _, entry := range s.History[start:] {
		if entry.Kind == session.EntryAction {
			out = append(out, fmt.Sprintf("%s: %s", entry.Action, entry.Summary))
			continue
		}
		out = append(out, entry.Summary)
	}
	return out
}

// recommendedActions synthesizes follow-up steps from the findings.
func recommendedActions(s *session.DebugSession) []string {
	actions := []string{
		"Review the analysis findings above",
		"Apply the recommended remediation steps",
		"Monitor the system after applying fixes",
	}
	joined := strings.ToLower(strings.Join(s.Findings(), " "))
	if strings.Contains(joined, "permission") || strings.Contains(joined, "access") {
		actions = append(actions, "Check and update role assignments for the affected identity")
	}
	if strings.Contains(joined, "network") {
		actions = append(actions, "Review network configuration and security group rules")
	}
	if strings.Contains(joined, "configuration") {
		actions = append(actions, "Verify resource configuration settings against the expected state")
	}
	return actions
}
