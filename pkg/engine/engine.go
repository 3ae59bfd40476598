// Package engine executes code agent runs: it provisions a sandbox, drives
// the agent network to completion, derives the user-facing reply and
// persists exactly one outcome per run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/sitesmith/pkg/agent"
	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/metrics"
	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/network"
	"github.com/nstogner/sitesmith/pkg/outcome"
	"github.com/nstogner/sitesmith/pkg/postprocess"
	"github.com/nstogner/sitesmith/pkg/sandbox"
	"github.com/nstogner/sitesmith/pkg/step"
	"github.com/nstogner/sitesmith/pkg/store"
	"github.com/nstogner/sitesmith/pkg/store/jsonl"
	"github.com/nstogner/sitesmith/pkg/tools"
)

// MemoryWindow is how many prior project messages a run sees.
const MemoryWindow = 5

// StepSaveResult is the step that persists a run's outcome.
const StepSaveResult = "save-result"

// Options configures an Engine.
type Options struct {
	Store store.Store
	// Journal records steps. Defaults to Store.
	Journal     step.Journal
	Provider    models.ModelProvider
	Model       string
	Temperature float32
	Sessions    *sandbox.Sessions
	// MaxIterations caps agent turns per run. Defaults to 15.
	MaxIterations int
	// Workers caps concurrently executing runs. Defaults to 4.
	Workers int
	// SweepInterval is how often Start looks for pending runs it may have
	// missed. Defaults to 30s.
	SweepInterval time.Duration
	// Transcripts, if set, receives each finished run's conversation.
	Transcripts *jsonl.Transcripts
}

// Engine executes runs.
type Engine struct {
	store         store.Store
	journal       step.Journal
	sessions      *sandbox.Sessions
	agent         *agent.Agent
	post          *postprocess.Pipeline
	maxIterations int
	workers       int
	sweepInterval time.Duration
	transcripts   *jsonl.Transcripts
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Journal == nil {
		opts.Journal = opts.Store
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = network.DefaultMaxIterations
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}

	dispatcher := tools.NewDispatcher(tools.DefaultRegistry(), opts.Sessions).
		WithObserver(metrics.RecordToolCall)
	codeAgent := agent.New(agent.Config{
		Name:        "code-agent",
		System:      agent.CodeAgentPrompt,
		Model:       opts.Model,
		Temperature: opts.Temperature,
	}, opts.Provider, dispatcher, agent.SummaryHook)

	return &Engine{
		store:         opts.Store,
		journal:       opts.Journal,
		sessions:      opts.Sessions,
		agent:         codeAgent,
		post:          postprocess.New(opts.Provider, opts.Model),
		maxIterations: opts.MaxIterations,
		workers:       opts.Workers,
		sweepInterval: opts.SweepInterval,
		transcripts:   opts.Transcripts,
	}
}

// Submit validates a run request and records it as a pending run. Runs are
// picked up by Start.
func (e *Engine) Submit(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if _, err := e.store.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}
	run := &domain.Run{
		ID:        uuid.New().String(),
		ProjectID: req.ProjectID,
		Value:     req.Value,
		Status:    domain.RunPending,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	slog.Info("Accepted run", "event", domain.EventRun, "runID", run.ID, "projectID", run.ProjectID)
	return run, nil
}

// Execute runs one run to completion and persists its outcome. Executing a
// run again replays its recorded steps, so a run interrupted by a crash or
// cancellation resumes where it stopped. An error is returned only when the
// run was interrupted or its steps or outcome could not be persisted; such a
// run stays pending.
func (e *Engine) Execute(ctx context.Context, run *domain.Run) (*domain.RunOutput, error) {
	start := time.Now()
	ex := step.NewExecutor(run.ID, e.journal).WithObserver(func(name string, status step.Status) {
		metrics.RecordStep(string(status))
	})

	memory, err := e.memory(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	state := network.NewState(memory)

	iterations := 0
	res := outcome.Outcome{Kind: outcome.KindError}

	sandboxID, err := e.sessions.Provision(ctx, ex)
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil && !step.IsFailure(err):
		// The journal failed, not the sandbox. Leave the run pending.
		return nil, fmt.Errorf("provision sandbox: %w", err)
	case err != nil:
		slog.Error("Sandbox provisioning failed", "runID", run.ID, "error", err)
	default:
		res, iterations, err = e.generate(ctx, ex, run, sandboxID, state)
		if err != nil {
			return nil, err
		}
	}

	if _, err := step.Do(ctx, ex, StepSaveResult, func(ctx context.Context) (string, error) {
		return e.save(ctx, run, res)
	}); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	status := domain.RunCompleted
	if res.Kind == outcome.KindError {
		status = domain.RunFailed
	}
	if err := e.store.SetRunStatus(ctx, run.ID, status); err != nil {
		return nil, fmt.Errorf("set run status: %w", err)
	}

	if e.transcripts != nil {
		h := jsonl.Header{RunID: run.ID, ProjectID: run.ProjectID, Outcome: string(res.Kind), Summary: res.Summary}
		if err := e.transcripts.Write(h, state.Messages); err != nil {
			slog.Warn("Writing transcript failed", "runID", run.ID, "error", err)
		}
	}

	metrics.RecordRun(string(res.Kind), time.Since(start).Seconds(), iterations)
	slog.Info("Run finished", "runID", run.ID, "outcome", res.Kind, "iterations", iterations, "files", len(res.Files))

	return &domain.RunOutput{
		URL:     res.URL,
		Title:   res.Title,
		Files:   res.Files,
		Summary: res.Summary,
	}, nil
}

// generate drives the agent network and derives the outcome. It returns an
// error only when ctx was cancelled.
func (e *Engine) generate(ctx context.Context, ex *step.Executor, run *domain.Run, sandboxID string, state *network.State) (outcome.Outcome, int, error) {
	iterations, err := network.New(e.agent.Bind(ex, sandboxID), e.maxIterations).Run(ctx, state)
	if ctx.Err() != nil {
		return outcome.Outcome{}, iterations, ctx.Err()
	}
	if err != nil {
		// The run ends without a summary and is classified below.
		slog.Error("Agent network stopped", "runID", run.ID, "iterations", iterations, "error", err)
	}

	url, err := e.sessions.ResolveHost(ctx, ex, sandboxID)
	if ctx.Err() != nil {
		return outcome.Outcome{}, iterations, ctx.Err()
	}
	if err != nil {
		slog.Error("Resolving preview host failed", "runID", run.ID, "sandboxID", sandboxID, "error", err)
	}

	res := outcome.Outcome{
		URL:     url,
		Files:   state.Files,
		Summary: state.Summary,
		Title:   postprocess.DefaultTitle,
	}
	if state.HasSummary() {
		pp := e.post.Run(ctx, ex, state.Summary)
		if ctx.Err() != nil {
			return outcome.Outcome{}, iterations, ctx.Err()
		}
		res.Title, res.Response = pp.Title, pp.Response
	}

	res.Kind = outcome.Classify(state)
	if res.Kind == outcome.KindResult && url == "" {
		res.Kind = outcome.KindError
	}
	return res, iterations, nil
}

// save persists the outcome message. IDs derive from the run so a save that
// is retried after a crash does not duplicate the message.
func (e *Engine) save(ctx context.Context, run *domain.Run, res outcome.Outcome) (string, error) {
	msg := &domain.Message{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("message/"+run.ID)).String(),
		ProjectID: run.ProjectID,
		Content:   res.Content(),
		Role:      domain.RoleAssistant,
		Type:      domain.TypeResult,
	}
	if res.Kind == outcome.KindError {
		msg.Type = domain.TypeError
	} else {
		msg.Fragment = &domain.Fragment{
			ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte("fragment/"+run.ID)).String(),
			SandboxURL: res.URL,
			Title:      res.Title,
			Files:      res.Files,
		}
	}
	if err := e.store.CreateMessage(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// memory returns the run's conversation: the most recent project messages
// before the run, oldest first, ending with the run's instruction.
func (e *Engine) memory(ctx context.Context, run *domain.Run) ([]models.AgentMessage, error) {
	recent, err := e.store.RecentMessages(ctx, run.ProjectID, run.CreatedAt, MemoryWindow)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	slices.Reverse(recent)

	msgs := make([]models.AgentMessage, 0, len(recent)+1)
	for _, m := range recent {
		role := models.RoleUser
		if m.Role == domain.RoleAssistant {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.Text(role, m.Content))
	}

	// The instruction is usually already the newest stored message.
	if n := len(recent); n == 0 || recent[n-1].Role != domain.RoleUser || recent[n-1].Content != run.Value {
		msgs = append(msgs, models.Text(models.RoleUser, run.Value))
	}
	return msgs, nil
}
