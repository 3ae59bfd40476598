package network

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultMaxIterations caps how many times the agent is invoked per run.
const DefaultMaxIterations = 15

// Decision is the router's verdict after a turn.
type Decision string

const (
	Continue Decision = "CONTINUE"
	Stop     Decision = "STOP"
)

// Decide is the router transition function. iteration is the number of agent
// invocations completed so far.
func Decide(state *State, iteration, maxIterations int) Decision {
	if state.HasSummary() {
		return Stop
	}
	if iteration >= maxIterations {
		return Stop
	}
	return Continue
}

// Agent is invoked once per network iteration.
type Agent interface {
	Name() string
	Turn(ctx context.Context, state *State, iteration int) error
}

// Network drives a single agent until the router stops it.
type Network struct {
	agent         Agent
	maxIterations int
}

// New creates a Network. A non-positive maxIterations uses the default.
func New(agent Agent, maxIterations int) *Network {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Network{agent: agent, maxIterations: maxIterations}
}

// Run iterates the agent and returns the number of invocations made. An
// agent error ends the loop early; the state keeps whatever was produced.
func (n *Network) Run(ctx context.Context, state *State) (int, error) {
	iteration := 0
	for {
		decision := Decide(state, iteration, n.maxIterations)
		slog.Debug("Router decision", "agent", n.agent.Name(), "iteration", iteration, "decision", decision)
		if decision == Stop {
			if !state.HasSummary() {
				slog.Warn("Network reached iteration ceiling without a summary", "agent", n.agent.Name(), "iterations", iteration)
			}
			return iteration, nil
		}

		if err := n.agent.Turn(ctx, state, iteration); err != nil {
			return iteration + 1, fmt.Errorf("agent %s iteration %d: %w", n.agent.Name(), iteration, err)
		}
		iteration++
	}
}
