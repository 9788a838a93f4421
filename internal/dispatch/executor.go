package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cast"

	"github.com/cloudtriage/cloudtriage/internal/auth"
)

// Executor runs registered actions with sanitization, scope checks, a
// per-action timeout, and bounded retries for throttled or transient
// failures. It holds no session state; appending results to the session
// is the orchestrator's job.
type Executor struct {
	registry   *Registry
	authorizer auth.Authorizer
	retry      RetryPolicy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewExecutor creates an executor over the given action table.
func NewExecutor(registry *Registry, authorizer auth.Authorizer, retry RetryPolicy, timeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:   registry,
		authorizer: authorizer,
		retry:      retry,
		timeout:    timeout,
		logger:     logger,
	}
}

// Execute dispatches one named action. It always returns either a result
// or a classified *ActionError; it never panics across this boundary and
// never raises uncaught.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any, id auth.Identity) (map[string]any, *ActionError) {
	action, ok := e.registry.Get(name)
	if !ok {
		return nil, &ActionError{
			Action: name,
			Kind:   KindUnknown,
			Err:    fmt.Errorf("%w: %s", ErrUnknownAction, name),
			Hints:  []string{"available actions: " + joinNames(e.registry.Names())},
		}
	}

	clean, err := sanitizeParams(params)
	if err != nil {
		return nil, &ActionError{
			Action: name,
			Kind:   KindPermission,
			Err:    fmt.Errorf("unsafe parameters rejected: %w", err),
			Hints:  []string{"remove shell metacharacters and script fragments from parameters"},
		}
	}

	if action.ScopeParam != "" {
		resource := cast.ToString(clean[action.ScopeParam])
		if !e.authorizer.Authorized(id, resource) {
			return nil, &ActionError{
				Action: name,
				Kind:   KindAuth,
				Err:    fmt.Errorf("caller is not authorized for resource %q", resource),
				Hints:  []string{"request access to the resource or target one within your scope"},
			}
		}
	}

	// The whole retry sequence shares one deadline: retries happen within
	// the action budget, never in addition to it.
	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	attempts := 0
	for {
		attempts++
		result, runErr := e.runOnce(runCtx, action, clean, id)
		if runErr == nil {
			return result, nil
		}

		actionErr := classify(name, runErr)
		if !actionErr.Kind.Retryable() || !e.retry.ShouldRetry(attempts) {
			return nil, actionErr
		}

		delay := e.retry.Delay(attempts)
		e.logger.DebugContext(ctx, "retrying action",
			"action", name,
			"attempt", attempts,
			"delay", delay,
			"error_kind", string(actionErr.Kind),
		)

		select {
		case <-runCtx.Done():
			return nil, classify(name, fmt.Errorf("retry budget exhausted: %w", runCtx.Err()))
		case <-time.After(delay):
		}
	}
}

// runOnce executes the handler with panic recovery.
func (e *Executor) runOnce(ctx context.Context, action Action, params map[string]any, id auth.Identity) (map[string]any, error) {
	type outcome struct {
		result map[string]any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("action panicked: %v", r)}
			}
		}()
		res, handlerErr := action.Handler(ctx, params, id)
		done <- outcome{result: res, err: handlerErr}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
