// Package memory implements an in-process sandbox.Provider. Files live in a
// map and commands are answered by a pluggable function. It backs local
// development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/sitesmith/pkg/sandbox"
)

// ErrExpired is returned when connecting to a sandbox whose lease ran out.
var ErrExpired = errors.New("sandbox expired")

// ErrNotFound is returned for unknown sandbox ids and missing files.
var ErrNotFound = errors.New("not found")

// ExecFunc answers a command. It may call the stream callbacks and returns
// the complete output and exit code.
type ExecFunc func(command string, files map[string]string) sandbox.CommandResult

// Provider is an in-memory sandbox.Provider.
type Provider struct {
	mu        sync.Mutex
	sandboxes map[string]*box
	exec      ExecFunc
	now       func() time.Time

	// Created counts calls to Create.
	Created int
}

var _ sandbox.Provider = (*Provider)(nil)

type box struct {
	id       string
	template string
	deadline time.Time
	files    map[string]string
	commands []string
}

// New creates a Provider. A nil exec uses DefaultExec.
func New(exec ExecFunc) *Provider {
	if exec == nil {
		exec = DefaultExec
	}
	return &Provider{
		sandboxes: make(map[string]*box),
		exec:      exec,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for lease expiry.
func (p *Provider) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func (p *Provider) Create(ctx context.Context, template string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "sbx-" + uuid.NewString()[:8]
	p.sandboxes[id] = &box{
		id:       id,
		template: template,
		deadline: p.now().Add(sandbox.DefaultTimeout),
		files:    make(map[string]string),
	}
	p.Created++
	return id, nil
}

func (p *Provider) Connect(ctx context.Context, id string) (sandbox.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.sandboxes[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, ErrNotFound)
	}
	if p.now().After(b.deadline) {
		return nil, fmt.Errorf("sandbox %s: %w", id, ErrExpired)
	}
	return &handle{p: p, b: b}, nil
}

// Files returns a copy of a sandbox's files.
func (p *Provider) Files(id string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string)
	if b, ok := p.sandboxes[id]; ok {
		for k, v := range b.files {
			out[k] = v
		}
	}
	return out
}

// Commands returns the commands run in a sandbox, in order.
func (p *Provider) Commands(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.sandboxes[id]; ok {
		return append([]string(nil), b.commands...)
	}
	return nil
}

// Deadline returns the lease deadline of a sandbox.
func (p *Provider) Deadline(id string) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.sandboxes[id]; ok {
		return b.deadline
	}
	return time.Time{}
}

type handle struct {
	p *Provider
	b *box
}

func (h *handle) ID() string { return h.b.id }

func (h *handle) SetTimeout(ctx context.Context, d time.Duration) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.b.deadline = h.p.now().Add(d)
	return nil
}

func (h *handle) RunCommand(ctx context.Context, command string, onStdout, onStderr func(string)) (*sandbox.CommandResult, error) {
	h.p.mu.Lock()
	h.b.commands = append(h.b.commands, command)
	files := make(map[string]string, len(h.b.files))
	for k, v := range h.b.files {
		files[k] = v
	}
	h.p.mu.Unlock()

	res := h.p.exec(command, files)
	if onStdout != nil && res.Stdout != "" {
		onStdout(res.Stdout)
	}
	if onStderr != nil && res.Stderr != "" {
		onStderr(res.Stderr)
	}
	if res.ExitCode != 0 {
		return &res, &sandbox.ExitError{Result: res}
	}
	return &res, nil
}

func (h *handle) WriteFile(ctx context.Context, p, content string) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.b.files[clean(p)] = content
	return nil
}

func (h *handle) ReadFile(ctx context.Context, p string) (string, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	content, ok := h.b.files[clean(p)]
	if !ok {
		return "", fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return content, nil
}

func (h *handle) Host(ctx context.Context, port int) (string, error) {
	return fmt.Sprintf("%d-%s.sandbox.local", port, h.b.id), nil
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// DefaultExec understands a handful of shell builtins: true, false, echo,
// ls and cat. Anything else exits 127.
func DefaultExec(command string, files map[string]string) sandbox.CommandResult {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return sandbox.CommandResult{}
	}
	switch fields[0] {
	case "true":
		return sandbox.CommandResult{}
	case "false":
		return sandbox.CommandResult{ExitCode: 1}
	case "echo":
		return sandbox.CommandResult{Stdout: strings.Join(fields[1:], " ") + "\n"}
	case "ls":
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		return sandbox.CommandResult{Stdout: strings.Join(names, "\n")}
	case "cat":
		var out strings.Builder
		for _, name := range fields[1:] {
			content, ok := files[clean(name)]
			if !ok {
				return sandbox.CommandResult{
					Stdout:   out.String(),
					Stderr:   fmt.Sprintf("cat: %s: No such file or directory\n", name),
					ExitCode: 1,
				}
			}
			out.WriteString(content)
		}
		return sandbox.CommandResult{Stdout: out.String()}
	default:
		return sandbox.CommandResult{
			Stderr:   fmt.Sprintf("sh: %s: command not found\n", fields[0]),
			ExitCode: 127,
		}
	}
}
