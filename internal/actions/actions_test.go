package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/dispatch"
)

// fakeCloudAPI records calls and returns canned answers.
type fakeCloudAPI struct {
	lastResourceID string
	lastGroup      string
	lastTimeRange  string
}

func (f *fakeCloudAPI) ResourceStatus(_ context.Context, _ auth.Identity, resourceID string) (map[string]any, error) {
	f.lastResourceID = resourceID
	return map[string]any{"summary": "running"}, nil
}

func (f *fakeCloudAPI) QueryLogs(_ context.Context, _ auth.Identity, resourceID, timeRange, _ string) (map[string]any, error) {
	f.lastResourceID = resourceID
	f.lastTimeRange = timeRange
	return map[string]any{"summary": "42 entries"}, nil
}

func (f *fakeCloudAPI) CheckPermissions(_ context.Context, _ auth.Identity, resourceID string) (map[string]any, error) {
	f.lastResourceID = resourceID
	return map[string]any{"summary": "reader"}, nil
}

func (f *fakeCloudAPI) GroupResources(_ context.Context, _ auth.Identity, group string) (map[string]any, error) {
	f.lastGroup = group
	return map[string]any{"summary": "3 resources"}, nil
}

func (f *fakeCloudAPI) Subscriptions(context.Context, auth.Identity) (map[string]any, error) {
	return map[string]any{"summary": "1 subscription"}, nil
}

const validResourceID = "/subscriptions/sub-1/resourceGroups/rg-1/providers/Microsoft.Web/sites/myapp"

func newRegistry(t *testing.T) (*dispatch.Registry, *fakeCloudAPI) {
	t.Helper()
	reg := dispatch.NewRegistry()
	api := &fakeCloudAPI{}
	if err := Register(reg, api); err != nil {
		t.Fatal(err)
	}
	return reg, api
}

func TestRegisterAllActions(t *testing.T) {
	reg, _ := newRegistry(t)

	want := []string{
		"analyze_error_pattern",
		"check_resource_permissions",
		"get_resource_status",
		"list_group_resources",
		"list_subscriptions",
		"query_resource_logs",
		"suggest_solution",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d actions, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestResourceIDValidation(t *testing.T) {
	reg, api := newRegistry(t)
	a, _ := reg.Get("get_resource_status")

	_, err := a.Handler(context.Background(), map[string]any{"resource_id": "just-a-name"}, auth.Identity{})
	if err == nil {
		t.Fatal("expected a malformed resource ID to be rejected")
	}
	var ae *dispatch.ActionError
	if !errors.As(err, &ae) || ae.Kind != dispatch.KindNotFound {
		t.Errorf("expected a not-found classification, got %v", err)
	}
	if api.lastResourceID != "" {
		t.Error("no remote call should happen for a malformed ID")
	}

	if _, err := a.Handler(context.Background(), map[string]any{"resource_id": validResourceID}, auth.Identity{}); err != nil {
		t.Fatalf("valid ID rejected: %v", err)
	}
	if api.lastResourceID != validResourceID {
		t.Error("expected the valid ID to reach the API")
	}
}

func TestQueryLogsDefaultsTimeRange(t *testing.T) {
	reg, api := newRegistry(t)
	a, _ := reg.Get("query_resource_logs")

	if _, err := a.Handler(context.Background(), map[string]any{"resource_id": validResourceID}, auth.Identity{}); err != nil {
		t.Fatal(err)
	}
	if api.lastTimeRange != "1h" {
		t.Errorf("expected default time range 1h, got %q", api.lastTimeRange)
	}
}

func TestListGroupResourcesRequiresGroup(t *testing.T) {
	reg, _ := newRegistry(t)
	a, _ := reg.Get("list_group_resources")

	if _, err := a.Handler(context.Background(), map[string]any{}, auth.Identity{}); err == nil {
		t.Error("expected a missing resource_group to be rejected")
	}
}

func TestAnalyzeErrorPatternMatches(t *testing.T) {
	result, err := analyzeErrorPattern(context.Background(), map[string]any{
		"error_text": "HTTP 403 Forbidden: access denied to storage container",
	}, auth.Identity{})
	if err != nil {
		t.Fatal(err)
	}

	matches, _ := result["matches"].([]map[string]any)
	if len(matches) < 2 {
		t.Fatalf("expected permission and storage matches, got %v", matches)
	}
	categories := map[string]bool{}
	for _, m := range matches {
		categories[m["category"].(string)] = true
	}
	if !categories["permission"] || !categories["storage"] {
		t.Errorf("expected permission and storage categories, got %v", categories)
	}
	if result["finding"] == "" {
		t.Error("expected a finding for matched patterns")
	}
}

func TestAnalyzeErrorPatternNoMatch(t *testing.T) {
	result, err := analyzeErrorPattern(context.Background(), map[string]any{
		"error_text": "something entirely unremarkable",
	}, auth.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if _, hasFinding := result["finding"]; hasFinding {
		t.Error("no finding expected without a match")
	}
}

func TestAnalyzeErrorPatternRequiresText(t *testing.T) {
	if _, err := analyzeErrorPattern(context.Background(), map[string]any{}, auth.Identity{}); err == nil {
		t.Error("expected missing error_text to be rejected")
	}
}

func TestSuggestSolutionMatchesFamilies(t *testing.T) {
	result, err := suggestSolution(context.Background(), map[string]any{
		"problem_summary": "app cannot reach the database",
		"findings":        []any{"connection refused from the app subnet"},
	}, auth.Identity{})
	if err != nil {
		t.Fatal(err)
	}

	steps, _ := result["steps"].([]string)
	if len(steps) == 0 {
		t.Fatal("expected remediation steps")
	}
	foundNetwork := false
	for _, step := range steps {
		if step == "Verify network security rules between the caller and the target" {
			foundNetwork = true
		}
	}
	if !foundNetwork {
		t.Errorf("expected network remediation steps, got %v", steps)
	}
}

func TestSuggestSolutionFallback(t *testing.T) {
	result, err := suggestSolution(context.Background(), map[string]any{
		"problem_summary": "nothing recognizable",
	}, auth.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	steps, _ := result["steps"].([]string)
	if len(steps) != 3 {
		t.Errorf("expected the generic fallback steps, got %v", steps)
	}
}
