package server

import (
	"context"
	"log/slog"
	"time"
)

// AuditEntry captures one inbound analysis request for the audit trail.
type AuditEntry struct {
	TraceID   string
	Principal string
	Tool      string
	NewTrace  bool
	Cancel    bool
}

// AuditLogger writes structured audit records for every analysis request
// and outcome. Payload contents are never logged, only shapes.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an audit logger on top of a structured logger.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

// LogRequest records an inbound tool call.
func (al *AuditLogger) LogRequest(ctx context.Context, entry AuditEntry) {
	al.logger.InfoContext(ctx, "tool_call",
		"tool", entry.Tool,
		"trace_id", entry.TraceID,
		"principal", entry.Principal,
		"new_trace", entry.NewTrace,
		"cancel", entry.Cancel,
	)
}

// LogOutcome records the terminal or suspended status of one call.
func (al *AuditLogger) LogOutcome(ctx context.Context, traceID, status string, elapsed time.Duration) {
	al.logger.InfoContext(ctx, "tool_result",
		"trace_id", traceID,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// LogRejection records a request refused before reaching the engine.
func (al *AuditLogger) LogRejection(ctx context.Context, traceID, reason string) {
	al.logger.WarnContext(ctx, "tool_rejected",
		"trace_id", traceID,
		"reason", reason,
	)
}
