package sandbox

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultTemplate is the sandbox image new sessions are created from.
	DefaultTemplate = "sitesmith-nextjs:latest"
	// DefaultTimeout is the idle lease of a session, refreshed on every acquire.
	DefaultTimeout = 10 * time.Minute
	// PreviewPort is the in-sandbox port the generated application is served on.
	PreviewPort = 3000
)

// CommandResult is the output of a command run inside a sandbox.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// ExitError is returned by RunCommand when a command exits non-zero.
type ExitError struct {
	Result CommandResult
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Result.ExitCode)
}

// Provider creates and reconnects to sandboxes.
type Provider interface {
	// Create allocates a new sandbox from the given template and returns its id.
	Create(ctx context.Context, template string) (string, error)

	// Connect returns a live handle to an existing sandbox.
	Connect(ctx context.Context, id string) (Handle, error)
}

// Handle is a live connection to one sandbox.
type Handle interface {
	ID() string

	// SetTimeout resets the sandbox's lease to expire d from now.
	SetTimeout(ctx context.Context, d time.Duration) error

	// RunCommand runs a shell command. onStdout and onStderr, when non-nil,
	// receive output incrementally as it is produced.
	RunCommand(ctx context.Context, command string, onStdout, onStderr func(string)) (*CommandResult, error)

	// WriteFile writes content to path, creating parent directories.
	WriteFile(ctx context.Context, path, content string) error

	// ReadFile returns the content of path.
	ReadFile(ctx context.Context, path string) (string, error)

	// Host returns the externally reachable host:port for an in-sandbox port.
	Host(ctx context.Context, port int) (string, error)
}
