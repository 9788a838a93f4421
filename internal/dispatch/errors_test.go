package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyByText(t *testing.T) {
	cases := []struct {
		err  string
		want ErrorKind
	}{
		{"401 unauthorized", KindAuth},
		{"token expired while calling api", KindAuth},
		{"403 Forbidden", KindPermission},
		{"access denied for principal", KindPermission},
		{"resource not found", KindNotFound},
		{"429 too many requests", KindThrottled},
		{"request was throttled", KindThrottled},
		{"dial tcp: connection refused", KindTransient},
		{"upstream timeout waiting for response", KindTransient},
		{"service unavailable", KindTransient},
		{"something completely different", KindUnknown},
	}

	for _, tc := range cases {
		got := classify("test_action", fmt.Errorf("%s", tc.err))
		if got.Kind != tc.want {
			t.Errorf("classify(%q) = %s, want %s", tc.err, got.Kind, tc.want)
		}
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	got := classify("slow_action", fmt.Errorf("running action: %w", context.DeadlineExceeded))
	if got.Kind != KindTransient {
		t.Errorf("deadline exceeded should classify transient, got %s", got.Kind)
	}
	if len(got.Hints) == 0 {
		t.Error("expected a hint about the execution budget")
	}
}

func TestRetryableKinds(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindAuth:       false,
		KindNotFound:   false,
		KindPermission: false,
		KindThrottled:  true,
		KindTransient:  true,
		KindUnknown:    false,
	}
	for kind, want := range retryable {
		if kind.Retryable() != want {
			t.Errorf("%s.Retryable() = %v, want %v", kind, kind.Retryable(), want)
		}
	}
}

func TestSummaryIncludesHints(t *testing.T) {
	ae := &ActionError{
		Action: "get_resource_status",
		Kind:   KindAuth,
		Err:    fmt.Errorf("401 unauthorized"),
		Hints:  []string{"re-authenticate and retry"},
	}
	summary := ae.Summary()
	if !strings.Contains(summary, "get_resource_status") || !strings.Contains(summary, "re-authenticate") {
		t.Errorf("unexpected summary: %s", summary)
	}
}
