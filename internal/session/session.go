// Package session provides the in-memory store for diagnostic sessions.
// A DebugSession accumulates everything learned during an investigation so
// that a suspended analysis can be resumed later with full context.
package session

import (
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends the session lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// EvidenceItem is a piece of caller-supplied context, typically a source
// file excerpt relevant to the error under investigation.
type EvidenceItem struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Relevance string `json:"relevance,omitempty"`
}

// Context holds the externally supplied evidence for a session. It is
// immutable after creation except for additions from continuation calls.
type Context struct {
	EvidenceItems    []EvidenceItem    `json:"evidence_items,omitempty"`
	EnvironmentHints map[string]string `json:"environment_hints,omitempty"`
}

// EntryKind distinguishes the record types in the exploration history.
type EntryKind string

const (
	EntryAction   EntryKind = "action"
	EntryFinding  EntryKind = "finding"
	EntryNote     EntryKind = "note"
	EntryEvidence EntryKind = "evidence"
)

// HistoryEntry is one record in a session's exploration history. The
// history doubles as reasoning context and as the audit trail, so entries
// carry a short human-readable summary rather than raw payloads.
type HistoryEntry struct {
	Kind      EntryKind `json:"kind"`
	Action    string    `json:"action,omitempty"`
	Summary   string    `json:"summary"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Success   bool      `json:"success"`
	At        time.Time `json:"at"`
}

// resultSummaryLimit caps how much of an action result is kept in the
// history entry. Full results live in FunctionResults.
const resultSummaryLimit = 200

// DebugSession is the unit of in-progress diagnostic work, keyed by trace
// ID. All mutation happens under the owning Store's per-session lock; the
// orchestrator is the only writer while a turn is in flight.
type DebugSession struct {
	TraceID          string
	OwnerID          string
	ErrorDescription string
	Context          Context

	// History is the append-only exploration history, bounded by
	// maxHistory with oldest-evidence truncation.
	History []HistoryEntry

	// FunctionResults maps action name to its last full result for fast
	// lookup without rescanning history.
	FunctionResults map[string]map[string]any

	Depth             int
	FunctionCallCount int

	StartedAt      time.Time
	LastActivityAt time.Time
	Status         Status

	maxHistory int
	cancelled  atomic.Bool
}

// Touch updates the activity timestamp used for idle eviction.
func (s *DebugSession) Touch(now time.Time) {
	s.LastActivityAt = now
}

// AppendAction records a dispatched action and its outcome. Successful
// results are also stored in FunctionResults under the action name.
func (s *DebugSession) AppendAction(name string, result map[string]any, errKind, summary string, now time.Time) {
	entry := HistoryEntry{
		Kind:      EntryAction,
		Action:    name,
		Summary:   truncate(summary, resultSummaryLimit),
		ErrorKind: errKind,
		Success:   errKind == "",
		At:        now,
	}
	s.appendEntry(entry)
	if result != nil {
		s.FunctionResults[name] = result
	}
	s.Touch(now)
}

// AppendFinding records an analysis finding.
func (s *DebugSession) AppendFinding(summary string, now time.Time) {
	s.appendEntry(HistoryEntry{Kind: EntryFinding, Summary: summary, Success: true, At: now})
	s.Touch(now)
}

// AppendNote records an orchestration note, e.g. a retried decision or a
// budget stop. Notes feed back into the reasoning context on resumption.
func (s *DebugSession) AppendNote(summary string, now time.Time) {
	s.appendEntry(HistoryEntry{Kind: EntryNote, Summary: summary, Success: true, At: now})
	s.Touch(now)
}

// AppendEvidence records additional evidence arriving on a continuation
// call, preserving causal order with prior findings.
func (s *DebugSession) AppendEvidence(items []EvidenceItem, reply string, now time.Time) {
	for _, item := range items {
		s.Context.EvidenceItems = append(s.Context.EvidenceItems, item)
		s.appendEntry(HistoryEntry{Kind: EntryEvidence, Summary: "evidence added: " + item.Path, Success: true, At: now})
	}
	if reply != "" {
		s.appendEntry(HistoryEntry{Kind: EntryEvidence, Summary: "user reply: " + truncate(reply, resultSummaryLimit), Success: true, At: now})
	}
	s.Touch(now)
}

func (s *DebugSession) appendEntry(entry HistoryEntry) {
	s.History = append(s.History, entry)
	if s.maxHistory > 0 && len(s.History) > s.maxHistory {
		// Drop oldest entries to cap the per-session memory footprint.
		drop := len(s.History) - s.maxHistory
		s.History = append(s.History[:0:0], s.History[drop:]...)
	}
}

// RecentActionNames returns the names of the most recent dispatched
// actions, newest last, up to n entries. Used for loop detection.
func (s *DebugSession) RecentActionNames(n int) []string {
	var names []string
	for i := len(s.History) - 1; i >= 0 && len(names) < n; i-- {
		if s.History[i].Kind == EntryAction {
			names = append(names, s.History[i].Action)
		}
	}
	// Reverse into chronological order.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// Findings returns the summaries of all finding entries in order.
func (s *DebugSession) Findings() []string {
	var out []string
	for _, entry := range s.History {
		if entry.Kind == EntryFinding {
			out = append(out, entry.Summary)
		}
	}
	return out
}

// MarkCancelled flags the session for cancellation. An in-flight turn
// observes the flag at its next turn boundary.
func (s *DebugSession) MarkCancelled() {
	s.cancelled.Store(true)
}

// Cancelled reports whether an explicit cancel intent has been recorded.
func (s *DebugSession) Cancelled() bool {
	return s.cancelled.Load()
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
