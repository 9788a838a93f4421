package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/cloudtriage/cloudtriage/internal/auth"
)

// errorPattern describes one known failure family: the keywords that
// identify it, the likely causes, and the first checks to run.
type errorPattern struct {
	category string
	keywords []string
	causes   []string
	checks   []string
}

var knownPatterns = []errorPattern{
	{
		category: "authentication",
		keywords: []string{"401", "unauthorized", "authentication", "token", "credential", "login"},
		causes: []string{
			"Expired or invalid credentials",
			"Service principal secret rotated without updating consumers",
			"Token audience or tenant mismatch",
		},
		checks: []string{
			"Verify the credential used by the failing component is current",
			"Check token expiry and refresh configuration",
		},
	},
	{
		category: "permission",
		keywords: []string{"403", "forbidden", "permission", "denied", "access", "rbac", "role"},
		causes: []string{
			"Missing role assignment on the target resource",
			"Role assignment scoped to the wrong resource group or subscription",
			"Deny assignment or policy blocking the operation",
		},
		checks: []string{
			"Run check_resource_permissions against the affected resource",
			"Review role assignments at the resource, group, and subscription scopes",
		},
	},
	{
		category: "network",
		keywords: []string{"timeout", "connection", "refused", "unreachable", "dns", "socket", "network"},
		causes: []string{
			"Security group or firewall rule blocking traffic",
			"DNS resolution failure for the target endpoint",
			"Target service not listening on the expected port",
		},
		checks: []string{
			"Verify network security rules between the caller and the target",
			"Resolve the target hostname from inside the failing environment",
		},
	},
	{
		category: "storage",
		keywords: []string{"blob", "storage", "container", "disk", "quota", "capacity"},
		causes: []string{
			"Storage account key rotated or access policy changed",
			"Capacity or quota limit reached",
			"Container or blob path does not exist",
		},
		checks: []string{
			"Check storage account metrics for throttling and capacity",
			"Verify the container and path referenced by the failing operation",
		},
	},
	{
		category: "compute",
		keywords: []string{"cpu", "memory", "oom", "killed", "crash", "restart", "unhealthy"},
		causes: []string{
			"Instance undersized for the workload",
			"Memory leak leading to OOM kills",
			"Failing health probe causing restart loops",
		},
		checks: []string{
			"Query resource logs around the crash timestamps",
			"Compare resource utilization against the instance size",
		},
	},
}

// analyzeErrorPattern classifies error text against the known failure
// families and reports matched categories with likely causes.
func analyzeErrorPattern(_ context.Context, params map[string]any, _ auth.Identity) (map[string]any, error) {
	errorText := strings.ToLower(cast.ToString(params["error_text"]))
	if errorText == "" {
		return nil, fmt.Errorf("error_text is required")
	}

	var matches []map[string]any
	for _, p := range knownPatterns {
		var hits []string
		for _, kw := range p.keywords {
			if strings.Contains(errorText, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		matches = append(matches, map[string]any{
			"category":         p.category,
			"matched_keywords": hits,
			"likely_causes":    p.causes,
			"suggested_checks": p.checks,
		})
	}

	result := map[string]any{"matches": matches}
	if len(matches) == 0 {
		result["summary"] = "no known failure pattern matched; investigate logs directly"
		return result, nil
	}

	categories := make([]string, 0, len(matches))
	for _, m := range matches {
		categories = append(categories, cast.ToString(m["category"]))
	}
	result["summary"] = "matched failure patterns: " + strings.Join(categories, ", ")
	result["finding"] = fmt.Sprintf("error text matches %s failure pattern", categories[0])
	return result, nil
}

// suggestSolution turns the diagnosed problem and accumulated findings
// into concrete remediation steps, keyed off the same failure families
// as pattern analysis.
func suggestSolution(_ context.Context, params map[string]any, _ auth.Identity) (map[string]any, error) {
	summary := cast.ToString(params["problem_summary"])
	if summary == "" {
		return nil, fmt.Errorf("problem_summary is required")
	}
	findings := cast.ToStringSlice(params["findings"])

	haystack := strings.ToLower(summary + " " + strings.Join(findings, " "))
	var steps []string
	for _, p := range knownPatterns {
		if !strings.Contains(haystack, p.category) && !containsAny(haystack, p.keywords) {
			continue
		}
		steps = append(steps, p.checks...)
	}
	if len(steps) == 0 {
		steps = []string{
			"Collect logs from the affected resource around the failure window",
			"Compare the current resource configuration against the last known-good state",
			"Reproduce the failure with verbose diagnostics enabled",
		}
	}

	return map[string]any{
		"problem": summary,
		"steps":   steps,
		"summary": fmt.Sprintf("suggested %d remediation steps", len(steps)),
	}, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
