package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned when a requested action name has no
// registration. It is fatal to the turn, never to the session.
var ErrUnknownAction = errors.New("unknown action")

// ErrorKind classifies an action failure for retry decisions and for the
// reasoning context.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindNotFound   ErrorKind = "not-found"
	KindPermission ErrorKind = "permission"
	KindThrottled  ErrorKind = "throttled"
	KindTransient  ErrorKind = "transient"
	KindUnknown    ErrorKind = "unknown"
)

// Retryable reports whether failures of this kind are worth retrying.
func (k ErrorKind) Retryable() bool {
	return k == KindThrottled || k == KindTransient
}

// ActionError is the structured failure of a dispatched action. It is
// never surfaced raw to the caller; the orchestrator folds it into the
// session findings so the reasoner can route around it.
type ActionError struct {
	Action string
	Kind   ErrorKind
	Err    error
	Hints  []string
}

// Error implements error.
func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed (%s): %v", e.Action, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ActionError) Unwrap() error { return e.Err }

// Summary renders the failure for the exploration history, including
// remediation hints when available.
func (e *ActionError) Summary() string {
	msg := fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
	if len(e.Hints) > 0 {
		msg += " (hints: " + strings.Join(e.Hints, "; ") + ")"
	}
	return msg
}

// classify maps an arbitrary action error onto the error taxonomy. Actions
// may return an *ActionError directly to control their own classification;
// anything else is classified by inspecting the error chain and text.
func classify(action string, err error) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		if ae.Action == "" {
			ae.Action = action
		}
		return ae
	}

	kind := KindUnknown
	var hints []string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
		hints = append(hints, "the action exceeded its execution budget; retry or narrow the query")
	case containsAny(err, "401", "unauthorized", "authentication failed", "token expired"):
		kind = KindAuth
		hints = append(hints, "credentials may be expired; re-authenticate and retry")
	case containsAny(err, "403", "forbidden", "access denied", "permission"):
		kind = KindPermission
		hints = append(hints, "verify the caller has the required role assignments")
	case containsAny(err, "404", "not found", "no such resource"):
		kind = KindNotFound
		hints = append(hints, "check the resource identifier for typos or deletions")
	case containsAny(err, "429", "too many requests", "throttled", "rate limit"):
		kind = KindThrottled
		hints = append(hints, "the downstream API is throttling; backing off")
	case containsAny(err, "timeout", "connection refused", "service unavailable", "temporary failure", "network is unreachable"):
		kind = KindTransient
		hints = append(hints, "transient infrastructure failure; retrying may succeed")
	}

	return &ActionError{Action: action, Kind: kind, Err: err, Hints: hints}
}

func containsAny(err error, fragments ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, f := range fragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
