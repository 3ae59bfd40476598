package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstogner/sitesmith/pkg/step"
)

// Step names used by Sessions.
const (
	StepProvision   = "get-sandbox-id"
	StepResolveHost = "get-sandbox-url"
)

// Sessions manages the sandbox lease of a run on top of a Provider.
type Sessions struct {
	provider Provider
	template string
	timeout  time.Duration
	port     int
	scheme   string
}

// Option configures Sessions.
type Option func(*Sessions)

// WithTemplate sets the template new sandboxes are created from.
func WithTemplate(template string) Option {
	return func(s *Sessions) { s.template = template }
}

// WithTimeout sets the lease applied on provision and on every acquire.
func WithTimeout(d time.Duration) Option {
	return func(s *Sessions) { s.timeout = d }
}

// WithPreviewPort sets the port resolved by ResolveHost.
func WithPreviewPort(port int) Option {
	return func(s *Sessions) { s.port = port }
}

// WithScheme sets the URL scheme of resolved preview addresses.
func WithScheme(scheme string) Option {
	return func(s *Sessions) { s.scheme = scheme }
}

// NewSessions creates a session manager for the given provider.
func NewSessions(provider Provider, opts ...Option) *Sessions {
	s := &Sessions{
		provider: provider,
		template: DefaultTemplate,
		timeout:  DefaultTimeout,
		port:     PreviewPort,
		scheme:   "https",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision creates the run's sandbox as a durable step and returns its id.
// Only the id is recorded; callers reconnect with Acquire.
func (s *Sessions) Provision(ctx context.Context, ex *step.Executor) (string, error) {
	return step.Do(ctx, ex, StepProvision, func(ctx context.Context) (string, error) {
		id, err := s.provider.Create(ctx, s.template)
		if err != nil {
			return "", fmt.Errorf("creating sandbox: %w", err)
		}
		h, err := s.provider.Connect(ctx, id)
		if err != nil {
			return "", fmt.Errorf("connecting to new sandbox: %w", err)
		}
		if err := h.SetTimeout(ctx, s.timeout); err != nil {
			return "", fmt.Errorf("setting sandbox timeout: %w", err)
		}
		slog.Info("Provisioned sandbox", "runID", ex.RunID(), "sandboxID", id, "template", s.template)
		return id, nil
	})
}

// Acquire reconnects to a sandbox and extends its lease. It is not a step:
// every call reflects the sandbox's current state.
func (s *Sessions) Acquire(ctx context.Context, id string) (Handle, error) {
	h, err := s.provider.Connect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("connecting to sandbox %s: %w", id, err)
	}
	if err := h.SetTimeout(ctx, s.timeout); err != nil {
		return nil, fmt.Errorf("extending sandbox %s: %w", id, err)
	}
	return h, nil
}

// ResolveHost returns the preview URL of the sandbox as a durable step, so
// the address is stable across retries of the run.
func (s *Sessions) ResolveHost(ctx context.Context, ex *step.Executor, id string) (string, error) {
	return step.Do(ctx, ex, StepResolveHost, func(ctx context.Context) (string, error) {
		h, err := s.Acquire(ctx, id)
		if err != nil {
			return "", err
		}
		host, err := h.Host(ctx, s.port)
		if err != nil {
			return "", fmt.Errorf("resolving sandbox host: %w", err)
		}
		return fmt.Sprintf("%s://%s", s.scheme, host), nil
	})
}
