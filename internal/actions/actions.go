// Package actions registers the built-in diagnostic actions. Cloud-backed
// actions delegate to a narrow CloudAPI interface implemented outside the
// core; pattern analysis and solution synthesis run locally.
package actions

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cast"

	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/dispatch"
)

// CloudAPI is the external collaborator that answers resource queries.
// Implementations are injected at startup; the orchestrator core never
// talks to a cloud SDK directly.
type CloudAPI interface {
	ResourceStatus(ctx context.Context, id auth.Identity, resourceID string) (map[string]any, error)
	QueryLogs(ctx context.Context, id auth.Identity, resourceID, timeRange, query string) (map[string]any, error)
	CheckPermissions(ctx context.Context, id auth.Identity, resourceID string) (map[string]any, error)
	GroupResources(ctx context.Context, id auth.Identity, group string) (map[string]any, error)
	Subscriptions(ctx context.Context, id auth.Identity) (map[string]any, error)
}

// resourceIDPattern is the accepted shape of a fully qualified resource
// identifier: /subscriptions/<id>/resourceGroups/<name>/providers/<ns>/...
var resourceIDPattern = regexp.MustCompile(`^/subscriptions/[^/]+/resourceGroups/[^/]+/providers/[^/]+/.+`)

type resourceParams struct {
	ResourceID string `json:"resource_id" jsonschema:"required,description=Fully qualified resource identifier"`
}

type logQueryParams struct {
	ResourceID string `json:"resource_id" jsonschema:"required,description=Fully qualified resource identifier"`
	TimeRange  string `json:"time_range,omitempty" jsonschema:"description=Lookback window such as 1h or 24h"`
	Query      string `json:"query,omitempty" jsonschema:"description=Optional log query expression"`
}

type groupParams struct {
	ResourceGroup string `json:"resource_group" jsonschema:"required,description=Resource group name"`
}

type analyzeParams struct {
	ErrorText string `json:"error_text" jsonschema:"required,description=Error text to classify"`
}

type suggestParams struct {
	ProblemSummary string   `json:"problem_summary" jsonschema:"required,description=One-line summary of the diagnosed problem"`
	Findings       []string `json:"findings,omitempty" jsonschema:"description=Findings gathered so far"`
}

// Register wires the built-in action set into the dispatch registry.
func Register(reg *dispatch.Registry, api CloudAPI) error {
	all := []dispatch.Action{
		{
			Name:        "get_resource_status",
			Description: "Get the current status and configuration of a cloud resource",
			Params:      resourceParams{},
			ScopeParam:  "resource_id",
			Handler:     requireResourceID(func(ctx context.Context, params map[string]any, id auth.Identity) (map[string]any, error) {
				return api.ResourceStatus(ctx, id, cast.ToString(params["resource_id"]))
			}),
		},
		{
			Name:        "query_resource_logs",
			Description: "Query monitoring logs for a cloud resource",
			Params:      logQueryParams{},
			ScopeParam:  "resource_id",
			Handler: requireResourceID(func(ctx context.Context, params map[string]any, id auth.Identity) (map[string]any, error) {
				timeRange := cast.ToString(params["time_range"])
				if timeRange == "" {
					timeRange = "1h"
				}
				return api.QueryLogs(ctx, id, cast.ToString(params["resource_id"]), timeRange, cast.ToString(params["query"]))
			}),
		},
		{
			Name:        "check_resource_permissions",
			Description: "Check the caller's permissions on a cloud resource",
			Params:      resourceParams{},
			ScopeParam:  "resource_id",
			Handler: requireResourceID(func(ctx context.Context, params map[string]any, id auth.Identity) (map[string]any, error) {
				return api.CheckPermissions(ctx, id, cast.ToString(params["resource_id"]))
			}),
		},
		{
			Name:        "list_group_resources",
			Description: "List all resources in a resource group",
			Params:      groupParams{},
			ScopeParam:  "resource_group",
			Handler: func(ctx context.Context, params map[string]any, id auth.Identity) (map[string]any, error) {
				group := cast.ToString(params["resource_group"])
				if group == "" {
					return nil, fmt.Errorf("resource_group is required")
				}
				return api.GroupResources(ctx, id, group)
			},
		},
		{
			Name:        "list_subscriptions",
			Description: "List the subscriptions visible to the caller",
			Handler: func(ctx context.Context, _ map[string]any, id auth.Identity) (map[string]any, error) {
				return api.Subscriptions(ctx, id)
			},
		},
		{
			Name:        "analyze_error_pattern",
			Description: "Classify error text against known failure patterns and suggest likely causes",
			Params:      analyzeParams{},
			Handler:     analyzeErrorPattern,
		},
		{
			Name:        "suggest_solution",
			Description: "Synthesize remediation recommendations from the findings gathered so far",
			Params:      suggestParams{},
			Handler:     suggestSolution,
		},
	}

	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return fmt.Errorf("registering %s: %w", a.Name, err)
		}
	}
	return nil
}

// requireResourceID rejects malformed resource identifiers before any
// remote call is attempted.
func requireResourceID(next dispatch.HandlerFunc) dispatch.HandlerFunc {
	return func(ctx context.Context, params map[string]any, id auth.Identity) (map[string]any, error) {
		resourceID := cast.ToString(params["resource_id"])
		if !resourceIDPattern.MatchString(resourceID) {
			return nil, &dispatch.ActionError{
				Kind:  dispatch.KindNotFound,
				Err:   fmt.Errorf("malformed resource identifier %q", resourceID),
				Hints: []string{"expected /subscriptions/<id>/resourceGroups/<name>/providers/<namespace>/<type>/<name>"},
			}
		}
		return next(ctx, params, id)
	}
}
