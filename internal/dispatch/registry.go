// Package dispatch validates, sanitizes, and executes named diagnostic
// actions chosen by the reasoning component. The action implementations
// themselves are external collaborators registered at startup; the
// framework owns timeouts, retries, and failure classification.
package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/cloudtriage/cloudtriage/internal/auth"
)

// HandlerFunc executes one diagnostic action. Results are generic maps so
// heterogeneous backends can be registered without a shared result type.
type HandlerFunc func(ctx context.Context, params map[string]any, id auth.Identity) (map[string]any, error)

// Action is one registered diagnostic action.
type Action struct {
	Name        string
	Description string
	// Params is a prototype struct describing the action's parameters;
	// its JSON schema is derived for the reasoner. Nil means no params.
	Params any
	// ScopeParam names the parameter holding the resource identifier the
	// authorizer must approve before execution. Empty skips the check.
	ScopeParam string
	Handler    HandlerFunc
}

// Definition is the reasoner-facing description of an action.
type Definition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Registry is the action table. It is registered once at startup and
// read-mostly afterwards, so it is safely shared without locking.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action. Duplicate names and nil handlers are
// registration-time programming errors.
func (r *Registry) Register(a Action) error {
	if a.Name == "" {
		return fmt.Errorf("action name is required")
	}
	if a.Handler == nil {
		return fmt.Errorf("action %s has no handler", a.Name)
	}
	if _, exists := r.actions[a.Name]; exists {
		return fmt.Errorf("action %s already registered", a.Name)
	}
	r.actions[a.Name] = a
	return nil
}

// Get returns the action registered under name.
func (r *Registry) Get(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns reasoner-facing definitions for every registered
// action, sorted by name for stable prompts.
func (r *Registry) Definitions() []Definition {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	defs := make([]Definition, 0, len(r.actions))
	for _, name := range r.Names() {
		a := r.actions[name]
		def := Definition{Name: a.Name, Description: a.Description}
		if a.Params != nil {
			def.Schema = reflector.Reflect(a.Params)
			def.Schema.Version = ""
		}
		defs = append(defs, def)
	}
	return defs
}
