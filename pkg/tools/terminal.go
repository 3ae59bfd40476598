package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const ToolNameTerminal = "terminal"

type TerminalTool struct{}

func (t *TerminalTool) Name() string { return ToolNameTerminal }

func (t *TerminalTool) Description() string {
	return "Use the terminal to run commands"
}

func (t *TerminalTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "The shell command to run."},
		},
		"required": []string{"command"},
	}
}

// Execute runs the command in the sandbox and returns its stdout. A failed
// command is reported with both captured streams.
func (t *TerminalTool) Execute(ctx context.Context, acquire Acquire, input map[string]any) (Result, error) {
	command, ok := input["command"].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return Result{}, fmt.Errorf("argument 'command' is required and must be a string")
	}

	var stdout, stderr strings.Builder

	sb, err := acquire(ctx)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		return Result{Output: commandFailed(err, &stdout, &stderr), Failed: true}, nil
	}

	slog.Info("Running command", "sandboxID", sb.ID(), "command", command)
	res, err := sb.RunCommand(ctx, command,
		func(s string) { stdout.WriteString(s) },
		func(s string) { stderr.WriteString(s) },
	)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		return Result{Output: commandFailed(err, &stdout, &stderr), Failed: true}, nil
	}
	return Result{Output: res.Stdout}, nil
}

func commandFailed(err error, stdout, stderr *strings.Builder) string {
	return fmt.Sprintf("Command failed: %v\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String())
}
