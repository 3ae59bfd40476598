// Package agent implements the coding agent runtime: one role made of
// instructions, a model, the sandbox tools and post-turn hooks.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/network"
	"github.com/nstogner/sitesmith/pkg/step"
	"github.com/nstogner/sitesmith/pkg/tools"
)

// Config describes an agent role.
type Config struct {
	Name        string
	System      string
	Model       string
	Temperature float32
}

// TurnResult is what the model produced in one turn.
type TurnResult struct {
	// Output holds the model's messages for the turn, in order.
	Output []models.AgentMessage
}

// Hook observes a turn right after the model responds. It may update the
// state and must return the result unmodified.
type Hook func(ctx context.Context, state *network.State, result *TurnResult) *TurnResult

// Agent is a configured role. It holds no per-run state; Bind attaches it to
// a run.
type Agent struct {
	cfg        Config
	provider   models.ModelProvider
	dispatcher *tools.Dispatcher
	hooks      []Hook
}

// New creates an Agent.
func New(cfg Config, provider models.ModelProvider, dispatcher *tools.Dispatcher, hooks ...Hook) *Agent {
	return &Agent{
		cfg:        cfg,
		provider:   provider,
		dispatcher: dispatcher,
		hooks:      hooks,
	}
}

// Bind attaches the agent to one run's executor and sandbox.
func (a *Agent) Bind(ex *step.Executor, sandboxID string) *Bound {
	return &Bound{agent: a, ex: ex, sandboxID: sandboxID}
}

// Bound is an Agent attached to a run. It implements network.Agent.
type Bound struct {
	agent     *Agent
	ex        *step.Executor
	sandboxID string
}

var _ network.Agent = (*Bound)(nil)

func (b *Bound) Name() string { return b.agent.cfg.Name }

// Turn performs one model inference as a durable step, runs the hooks, and
// dispatches the requested tool calls in order. Tool results are appended to
// the conversation for the next turn.
func (b *Bound) Turn(ctx context.Context, state *network.State, iteration int) error {
	a := b.agent
	req := models.Request{
		Model:       a.cfg.Model,
		System:      a.cfg.System,
		Temperature: a.cfg.Temperature,
		Messages:    state.Messages,
	}
	if a.dispatcher != nil {
		req.Tools = a.dispatcher.Specs()
	}

	name := fmt.Sprintf("%s:infer:%d", a.cfg.Name, iteration)
	msg, err := step.Do(ctx, b.ex, name, func(ctx context.Context) (models.AgentMessage, error) {
		slog.Info("Calling model", "runID", b.ex.RunID(), "agent", a.cfg.Name, "iteration", iteration)
		return models.Complete(ctx, a.provider, req)
	})
	if err != nil {
		return fmt.Errorf("model inference: %w", err)
	}
	state.Append(msg)

	result := &TurnResult{Output: []models.AgentMessage{msg}}
	for _, hook := range a.hooks {
		result = hook(ctx, state, result)
	}

	for _, call := range msg.ToolCalls() {
		if a.dispatcher == nil {
			state.Append(models.ToolResult(call, fmt.Sprintf("Error: Tool '%s' not found.", call.Name)))
			continue
		}
		out := a.dispatcher.Dispatch(ctx, b.ex, b.sandboxID, state, call)
		state.Append(models.ToolResult(call, out))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Generate runs a single-turn, tool-less completion and returns the text of
// the last assistant message.
func Generate(ctx context.Context, provider models.ModelProvider, cfg Config, input string) (string, error) {
	msg, err := models.Complete(ctx, provider, models.Request{
		Model:       cfg.Model,
		System:      cfg.System,
		Temperature: cfg.Temperature,
		Messages:    []models.AgentMessage{models.Text(models.RoleUser, input)},
	})
	if err != nil {
		return "", err
	}
	return LastAssistantText([]models.AgentMessage{msg}), nil
}
