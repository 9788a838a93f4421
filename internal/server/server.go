// Package server exposes the diagnostic orchestrator over MCP. It owns
// request validation, credential filtering, and the mapping from store
// and engine outcomes onto the four-status response contract.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/cloudtriage/cloudtriage/internal/agent"
	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/config"
	"github.com/cloudtriage/cloudtriage/internal/observe"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

const (
	toolDebugError  = "debug_error"
	toolDebugStatus = "debug_status"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// MCPServer wraps the mcp-go server with the orchestrator surface.
type MCPServer struct {
	server   *server.MCPServer
	store    *session.Store
	engine   *agent.Engine
	verifier auth.TokenVerifier
	filter   SensitiveDataFilter
	audit    *AuditLogger
	metrics  *observe.Metrics
	input    config.InputConfig
	clock    Clock
	logger   *slog.Logger
}

// Config holds the server identity and input limits.
type Config struct {
	Name    string
	Version string
	Input   config.InputConfig
}

// NewMCPServer creates and configures the MCP surface.
func NewMCPServer(
	cfg Config,
	store *session.Store,
	engine *agent.Engine,
	verifier auth.TokenVerifier,
	audit *AuditLogger,
	metrics *observe.Metrics,
	clock Clock,
	logger *slog.Logger,
) *MCPServer {
	if clock == nil {
		clock = session.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	ms := &MCPServer{
		server:   mcpServer,
		store:    store,
		engine:   engine,
		verifier: verifier,
		audit:    audit,
		metrics:  metrics,
		input:    cfg.Input,
		clock:    clock,
		logger:   logger,
	}

	ms.registerTools()
	return ms
}

// registerTools registers the orchestrator tools.
func (ms *MCPServer) registerTools() {
	debugErrorTool := mcp.NewTool(toolDebugError,
		mcp.WithDescription("Start or continue an autonomous diagnostic session for a cloud error"),
		mcp.WithString("access_token",
			mcp.Required(),
			mcp.Description("Caller access token passed through to diagnostic actions"),
		),
		mcp.WithString("trace_id",
			mcp.Description("Trace ID of an existing session to continue; omit to start fresh"),
		),
		mcp.WithString("error_description",
			mcp.Description("The error to investigate (required when starting a new session)"),
		),
		mcp.WithArray("evidence_items",
			mcp.Description("Source excerpts or logs relevant to the error, as {path, content, relevance} objects"),
		),
		mcp.WithObject("environment_hints",
			mcp.Description("Key-value hints about the environment (region, runtime, framework)"),
		),
		mcp.WithString("user_response",
			mcp.Description("Answer to a question the analysis asked when it suspended with status request"),
		),
		mcp.WithBoolean("cancel",
			mcp.Description("Cancel the session identified by trace_id instead of continuing it"),
		),
	)
	ms.server.AddTool(debugErrorTool, ms.handleDebugError)

	debugStatusTool := mcp.NewTool(toolDebugStatus,
		mcp.WithDescription("Report the current state of a diagnostic session without advancing it"),
		mcp.WithString("access_token",
			mcp.Required(),
			mcp.Description("Caller access token; only the session owner may inspect it"),
		),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Trace ID of the session to inspect"),
		),
	)
	ms.server.AddTool(debugStatusTool, ms.handleDebugStatus)
}

// handleDebugError implements the analysis entry point. Every path out of
// this handler returns a well-formed Response; transport-level errors are
// reserved for malformed requests.
func (ms *MCPServer) handleDebugError(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callStart := ms.clock.Now()

	token, err := request.RequireString("access_token")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := ms.verifier.Verify(ctx, token)
	if err != nil {
		ms.audit.LogRejection(ctx, "", "token verification failed")
		return ms.respond(agent.Response{
			Status:  agent.StatusFail,
			Message: "Authentication failed: the provided access token could not be verified.",
		})
	}

	traceID := request.GetString("trace_id", "")
	cancel := request.GetBool("cancel", false)

	ms.audit.LogRequest(ctx, AuditEntry{
		TraceID:   traceID,
		Principal: id.Principal,
		Tool:      toolDebugError,
		NewTrace:  traceID == "",
		Cancel:    cancel,
	})

	if cancel {
		return ms.handleCancel(ctx, id, traceID)
	}

	var resp agent.Response
	if traceID == "" {
		resp = ms.startSession(ctx, request, id, callStart)
	} else {
		resp = ms.continueSession(ctx, request, id, traceID, callStart)
	}

	ms.audit.LogOutcome(ctx, resp.TraceID, string(resp.Status), ms.clock.Now().Sub(callStart))
	return ms.respond(resp)
}

// startSession validates, filters, and creates a fresh session, then runs
// the analysis loop on it.
func (ms *MCPServer) startSession(ctx context.Context, request mcp.CallToolRequest, id auth.Identity, callStart time.Time) agent.Response {
	errorDescription := request.GetString("error_description", "")
	sessionCtx := parseSessionContext(request)

	if err := validateNewSession(errorDescription, sessionCtx, ms.input); err != nil {
		ms.audit.LogRejection(ctx, "", err.Error())
		return agent.Response{
			Status:  agent.StatusFail,
			Message: "Invalid request: " + err.Error(),
		}
	}

	errorDescription = ms.filter.FilterText(errorDescription)
	sessionCtx.EvidenceItems = ms.filter.FilterEvidence(sessionCtx.EvidenceItems)
	sessionCtx.EnvironmentHints = ms.filter.FilterHints(sessionCtx.EnvironmentHints)

	s, release := ms.store.Create(id.Principal, errorDescription, sessionCtx)
	defer release()
	ms.metrics.RecordSessionCreated()

	ms.logger.InfoContext(ctx, "session created",
		"trace_id", s.TraceID,
		"evidence_items", len(sessionCtx.EvidenceItems),
	)

	return ms.engine.Run(ctx, s, id, callStart)
}

// continueSession resumes an existing session. Unknown and busy traces
// surface as fail responses; a busy trace keeps its session intact.
func (ms *MCPServer) continueSession(ctx context.Context, request mcp.CallToolRequest, id auth.Identity, traceID string, callStart time.Time) agent.Response {
	s, release, err := ms.store.Acquire(traceID)
	if err != nil {
		ms.audit.LogRejection(ctx, traceID, err.Error())
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			return ms.notFoundResponse(traceID)
		case errors.Is(err, session.ErrSessionBusy):
			return agent.Response{
				Status:  agent.StatusFail,
				TraceID: traceID,
				Message: "Session busy: another analysis turn is in progress for this trace ID. Retry shortly.",
			}
		default:
			return agent.Response{
				Status:  agent.StatusFail,
				TraceID: traceID,
				Message: "Could not resume session: " + err.Error(),
			}
		}
	}
	defer release()

	// Ownership isolation: a trace ID is only usable by the principal that
	// created the session. Foreign callers get the same answer as for an
	// unknown trace so existence is not leaked.
	if s.OwnerID != id.Principal {
		ms.audit.LogRejection(ctx, traceID, "owner mismatch")
		return ms.notFoundResponse(traceID)
	}

	newCtx := parseSessionContext(request)
	if err := validateEvidence(newCtx.EvidenceItems, ms.input); err != nil {
		ms.audit.LogRejection(ctx, traceID, err.Error())
		return agent.Response{
			Status:  agent.StatusFail,
			TraceID: traceID,
			Message: "Invalid request: " + err.Error(),
		}
	}

	reply := ms.filter.FilterText(request.GetString("user_response", ""))
	items := ms.filter.FilterEvidence(newCtx.EvidenceItems)
	if len(items) > 0 || reply != "" {
		s.AppendEvidence(items, reply, ms.clock.Now())
	}
	for k, v := range ms.filter.FilterHints(newCtx.EnvironmentHints) {
		if s.Context.EnvironmentHints == nil {
			s.Context.EnvironmentHints = make(map[string]string)
		}
		s.Context.EnvironmentHints[k] = v
	}

	ms.logger.InfoContext(ctx, "session resumed",
		"trace_id", traceID,
		"new_evidence", len(items),
	)

	return ms.engine.Run(ctx, s, id, callStart)
}

// handleCancel honors an explicit cancel intent. Only the owning
// principal may cancel; everyone else sees the not-found answer.
func (ms *MCPServer) handleCancel(ctx context.Context, id auth.Identity, traceID string) (*mcp.CallToolResult, error) {
	if traceID == "" {
		return mcp.NewToolResultError("cancel requires a trace_id"), nil
	}
	s, err := ms.store.Peek(traceID)
	if err != nil || s.OwnerID != id.Principal {
		return ms.respond(agent.Response{
			Status:  agent.StatusFail,
			TraceID: traceID,
			Message: "Session not found: nothing to cancel.",
		})
	}
	if err := ms.store.Cancel(traceID); err != nil {
		return ms.respond(agent.Response{
			Status:  agent.StatusFail,
			TraceID: traceID,
			Message: "Session not found: nothing to cancel.",
		})
	}
	ms.logger.InfoContext(ctx, "session cancelled", "trace_id", traceID)
	return ms.respond(agent.Response{
		Status:  agent.StatusFail,
		TraceID: traceID,
		Message: "Analysis cancelled at the caller's request.",
	})
}

// handleDebugStatus reports a session snapshot without advancing it.
// Foreign principals get the same answer as for an unknown trace.
func (ms *MCPServer) handleDebugStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := request.RequireString("access_token")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	traceID, err := request.RequireString("trace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := ms.verifier.Verify(ctx, token)
	if err != nil {
		ms.audit.LogRejection(ctx, traceID, "token verification failed")
		return mcp.NewToolResultError("authentication failed"), nil
	}

	s, err := ms.store.Peek(traceID)
	if err != nil || s.OwnerID != id.Principal {
		if err == nil {
			ms.audit.LogRejection(ctx, traceID, "owner mismatch")
		}
		return ms.respondJSON(map[string]any{
			"trace_id": traceID,
			"found":    false,
			"message":  "no live session with this trace ID",
		})
	}

	return ms.respondJSON(map[string]any{
		"trace_id":            s.TraceID,
		"found":               true,
		"status":              string(s.Status),
		"depth":               s.Depth,
		"function_call_count": s.FunctionCallCount,
		"findings":            s.Findings(),
		"started_at":          s.StartedAt,
		"last_activity_at":    s.LastActivityAt,
	})
}

// parseSessionContext extracts evidence and hints from the request
// arguments. Malformed items are skipped rather than rejected; payload
// limits are enforced separately.
func parseSessionContext(request mcp.CallToolRequest) session.Context {
	args := request.GetArguments()
	var out session.Context

	if raw, ok := args["evidence_items"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out.EvidenceItems = append(out.EvidenceItems, session.EvidenceItem{
				Path:      cast.ToString(m["path"]),
				Content:   cast.ToString(m["content"]),
				Relevance: cast.ToString(m["relevance"]),
			})
		}
	}

	if raw, ok := args["environment_hints"].(map[string]any); ok {
		out.EnvironmentHints = make(map[string]string, len(raw))
		for k, v := range raw {
			out.EnvironmentHints[k] = cast.ToString(v)
		}
	}

	return out
}

// notFoundResponse is the uniform answer for unknown, expired, and
// foreign-owned trace IDs.
func (ms *MCPServer) notFoundResponse(traceID string) agent.Response {
	return agent.Response{
		Status:  agent.StatusFail,
		TraceID: traceID,
		Message: "Session not found: it may have expired or already completed. Start a new analysis with the error description.",
	}
}

// respond serializes an engine response as the tool result.
func (ms *MCPServer) respond(resp agent.Response) (*mcp.CallToolResult, error) {
	return ms.respondJSON(resp)
}

func (ms *MCPServer) respondJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
