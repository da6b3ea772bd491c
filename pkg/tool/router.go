package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflow/core/pkg/registry"
)

// Router federates built-in and MCP-remote tools under one name-keyed
// registry (C10), grounded on the teacher's pkg/tools/registry.go
// ToolRegistry over registry.BaseRegistry. Registering a name that
// already exists is an error — callers must pick globally unique tool
// names across built-in and remote sources.
type Router struct {
	*registry.BaseRegistry[Tool]
	defaultTimeout time.Duration
}

// NewRouter constructs an empty Router. defaultTimeout bounds Execute
// calls whose caller does not specify one; spec.md §4.7's builtin tools
// apply their own tighter timeouts internally, so this is mainly a
// backstop for MCP-remote tools.
func NewRouter(defaultTimeout time.Duration) *Router {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	return &Router{
		BaseRegistry:   registry.NewBaseRegistry[Tool](),
		defaultTimeout: defaultTimeout,
	}
}

// Describe lists the Info of every registered tool, for building the
// LLM-facing tool-definition list each turn.
func (rt *Router) Describe() []Info {
	tools := rt.List()
	infos := make([]Info, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, t.Info())
	}
	return infos
}

// Execute validates args against the named tool's declared parameters,
// dispatches with a timeout, and returns a uniform Result — never an
// error — per spec.md §4.10: unknown tool, missing required parameter,
// and timeout all surface as Result{Status: StatusError}.
func (rt *Router) Execute(ctx context.Context, name string, args map[string]any, timeout time.Duration) Result {
	started := time.Now()

	t, ok := rt.Get(name)
	if !ok {
		return Result{
			Status: StatusError, Error: fmt.Sprintf("unknown tool %q", name),
			StartedAt: started, CompletedAt: time.Now(),
		}
	}

	if err := validateArgs(t.Info(), args); err != nil {
		return Result{
			Status: StatusError, Error: err.Error(),
			StartedAt: started, CompletedAt: time.Now(),
		}
	}

	if timeout <= 0 {
		timeout = rt.defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := runWithTimeout(execCtx, t, args)

	if result.StartedAt.IsZero() {
		result.StartedAt = started
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}
	if result.DurationMS == 0 {
		result.DurationMS = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	}
	return result
}

// runWithTimeout executes t.Execute on its own goroutine so that a tool
// which ignores ctx cancellation still yields a timeout Result instead
// of hanging Execute forever.
func runWithTimeout(ctx context.Context, t Tool, args map[string]any) Result {
	done := make(chan Result, 1)
	go func() {
		done <- t.Execute(ctx, args)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return Result{Status: StatusError, Error: fmt.Sprintf("tool %q timed out", t.Info().Name)}
	}
}

func validateArgs(info Info, args map[string]any) error {
	known := make(map[string]bool, len(info.Parameters))
	for _, param := range info.Parameters {
		known[param.Name] = true
		if !param.Required {
			continue
		}
		if _, ok := args[param.Name]; !ok {
			return fmt.Errorf("missing required parameter %q for tool %q", param.Name, info.Name)
		}
	}
	for name := range args {
		if !known[name] {
			return fmt.Errorf("unknown parameter %q for tool %q", name, info.Name)
		}
	}
	return nil
}
