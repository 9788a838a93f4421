package dispatch

import (
	"context"
	"testing"

	"github.com/cloudtriage/cloudtriage/internal/auth"
)

func noopHandler(context.Context, map[string]any, auth.Identity) (map[string]any, error) {
	return map[string]any{}, nil
}

type sampleParams struct {
	ResourceID string `json:"resource_id" jsonschema:"required"`
	TimeRange  string `json:"time_range,omitempty"`
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Action{Handler: noopHandler}); err == nil {
		t.Error("expected nameless registration to fail")
	}
	if err := r.Register(Action{Name: "no_handler"}); err == nil {
		t.Error("expected handlerless registration to fail")
	}
	if err := r.Register(Action{Name: "dup", Handler: noopHandler}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Action{Name: "dup", Handler: noopHandler}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(Action{Name: name, Handler: noopHandler}); err != nil {
			t.Fatal(err)
		}
	}
	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestDefinitionsCarrySchemas(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Action{
		Name:        "with_params",
		Description: "an action with parameters",
		Params:      sampleParams{},
		Handler:     noopHandler,
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Action{Name: "bare", Handler: noopHandler}); err != nil {
		t.Fatal(err)
	}

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	// Sorted: bare first, with_params second.
	if defs[0].Schema != nil {
		t.Error("parameterless action should have no schema")
	}
	schema := defs[1].Schema
	if schema == nil {
		t.Fatal("expected a derived schema")
	}
	if _, ok := schema.Properties.Get("resource_id"); !ok {
		t.Error("schema missing resource_id property")
	}
	required := map[string]bool{}
	for _, name := range schema.Required {
		required[name] = true
	}
	if !required["resource_id"] {
		t.Error("resource_id should be required")
	}
	if required["time_range"] {
		t.Error("time_range should be optional")
	}
}
