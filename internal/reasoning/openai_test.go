package reasoning

import (
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloudtriage/cloudtriage/internal/dispatch"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

func toolCallMessage(name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{
			{
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      name,
					Arguments: args,
				},
			},
		},
	}
}

func TestParseInvokeDecision(t *testing.T) {
	msg := toolCallMessage("get_resource_status", `{"resource_id": "/subscriptions/s/resourceGroups/g/providers/p/t/n"}`)
	msg.Content = "the vm might be stopped"

	d, err := parseMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != DecisionInvoke {
		t.Fatalf("expected invoke, got %d", d.Kind)
	}
	if d.Action != "get_resource_status" {
		t.Errorf("unexpected action %q", d.Action)
	}
	if d.Params["resource_id"] == "" {
		t.Error("expected parsed params")
	}
	if d.Rationale != "the vm might be stopped" {
		t.Errorf("expected the content as rationale, got %q", d.Rationale)
	}
}

func TestParseControlTools(t *testing.T) {
	cases := []struct {
		name string
		args string
		kind DecisionKind
	}{
		{toolRequestInput, `{"question": "which region is the app deployed in?"}`, DecisionRequestInfo},
		{toolConclude, `{"summary": "the storage key was rotated; update the app settings"}`, DecisionConclude},
		{toolAbandon, `{"reason": "insufficient access to the subscription"}`, DecisionExhausted},
	}
	for _, tc := range cases {
		d, err := parseMessage(toolCallMessage(tc.name, tc.args))
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if d.Kind != tc.kind {
			t.Errorf("%s: expected kind %d, got %d", tc.name, tc.kind, d.Kind)
		}
	}
}

func TestParseControlToolsMissingField(t *testing.T) {
	for _, name := range []string{toolRequestInput, toolConclude, toolAbandon} {
		_, err := parseMessage(toolCallMessage(name, `{}`))
		if !errors.Is(err, ErrUnparseable) {
			t.Errorf("%s without its field should be unparseable, got %v", name, err)
		}
	}
}

func TestParseBadArguments(t *testing.T) {
	_, err := parseMessage(toolCallMessage("get_resource_status", `{not json`))
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}
}

func TestParsePlainContentConcludes(t *testing.T) {
	d, err := parseMessage(openai.ChatCompletionMessage{Content: "Root cause: expired certificate."})
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != DecisionConclude || d.Summary == "" {
		t.Errorf("expected a conclusion, got %+v", d)
	}
}

func TestParseEmptyMessage(t *testing.T) {
	_, err := parseMessage(openai.ChatCompletionMessage{})
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}
}

func TestBuildToolsIncludesControls(t *testing.T) {
	defs := []dispatch.Definition{
		{Name: "get_resource_status", Description: "check a resource"},
	}
	tools := buildTools(defs)
	if len(tools) != 4 {
		t.Fatalf("expected 1 action + 3 control tools, got %d", len(tools))
	}

	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Function.Name] = true
	}
	for _, want := range []string{"get_resource_status", toolRequestInput, toolConclude, toolAbandon} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestPromptsCarrySessionMemory(t *testing.T) {
	s := &session.DebugSession{
		TraceID:          "trace-1",
		ErrorDescription: "502 from the app gateway",
		Context: session.Context{
			EnvironmentHints: map[string]string{"region": "westeurope"},
			EvidenceItems:    []session.EvidenceItem{{Path: "gateway.log", Content: "upstream timed out"}},
		},
		FunctionResults: map[string]map[string]any{},
	}
	s.AppendAction("get_resource_status", nil, "transient", "backend pool unreachable", s.StartedAt)
	s.AppendFinding("backend pool has zero healthy instances", s.StartedAt)

	prompt := userPrompt(s)
	for _, fragment := range []string{
		"502 from the app gateway",
		"westeurope",
		"gateway.log",
		"failed:transient",
		"zero healthy instances",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}

	sys := systemPrompt([]dispatch.Definition{{Name: "query_resource_logs", Description: "query logs"}})
	if !strings.Contains(sys, "query_resource_logs") || !strings.Contains(sys, toolConclude) {
		t.Error("system prompt missing action or control tool names")
	}
}
