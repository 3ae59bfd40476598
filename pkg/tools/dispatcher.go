package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/network"
	"github.com/nstogner/sitesmith/pkg/sandbox"
	"github.com/nstogner/sitesmith/pkg/step"
)

// Dispatcher executes model-requested tool calls against a run's sandbox.
// Every call is one durable step and every failure is returned as text.
type Dispatcher struct {
	registry *Registry
	sessions *sandbox.Sessions
	observe  func(tool string, failed bool)
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *Registry, sessions *sandbox.Sessions) *Dispatcher {
	return &Dispatcher{registry: registry, sessions: sessions}
}

// WithObserver sets a callback invoked after each dispatched call.
func (d *Dispatcher) WithObserver(fn func(tool string, failed bool)) *Dispatcher {
	d.observe = fn
	return d
}

// Specs returns the declarations of the dispatchable tools.
func (d *Dispatcher) Specs() []models.ToolSpec {
	return d.registry.Specs()
}

// StepName is the durable identity of a tool call.
func StepName(call models.ToolUseContent) string {
	return call.Name + ":" + call.ID
}

// Dispatch runs one tool call and returns the text result for the model.
// State changes are applied from the recorded result, so a replayed call
// updates the state exactly like the original one.
func (d *Dispatcher) Dispatch(ctx context.Context, ex *step.Executor, sandboxID string, state *network.State, call models.ToolUseContent) string {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		slog.Warn("Unknown tool called", "tool", call.Name)
		d.report(call.Name, true)
		return fmt.Sprintf("Error: Tool '%s' not found.", call.Name)
	}

	acquire := func(ctx context.Context) (sandbox.Handle, error) {
		return d.sessions.Acquire(ctx, sandboxID)
	}

	res, err := step.Do(ctx, ex, StepName(call), func(ctx context.Context) (Result, error) {
		r, err := tool.Execute(ctx, acquire, call.Input)
		if ctx.Err() != nil {
			// Interrupted calls stay unrecorded and run again on resume.
			return Result{}, ctx.Err()
		}
		if err != nil {
			slog.Error("Tool execution failed", "tool", call.Name, "error", err)
			return Result{Output: "Error: " + err.Error(), Failed: true}, nil
		}
		return r, nil
	})
	if err != nil {
		if ctx.Err() == nil {
			d.report(call.Name, true)
		}
		return "Error: " + err.Error()
	}
	if len(res.Files) > 0 {
		state.MergeFiles(res.Files)
	}
	d.report(call.Name, res.Failed)
	return res.Output
}

func (d *Dispatcher) report(tool string, failed bool) {
	if d.observe != nil {
		d.observe(tool, failed)
	}
}
