package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nstogner/sitesmith/pkg/config"
	"github.com/nstogner/sitesmith/pkg/engine"
	"github.com/nstogner/sitesmith/pkg/metrics"
	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/models/gemini"
	"github.com/nstogner/sitesmith/pkg/models/openai"
	"github.com/nstogner/sitesmith/pkg/sandbox"
	"github.com/nstogner/sitesmith/pkg/sandbox/docker"
	"github.com/nstogner/sitesmith/pkg/sandbox/memory"
	"github.com/nstogner/sitesmith/pkg/step"
	"github.com/nstogner/sitesmith/pkg/step/badger"
	"github.com/nstogner/sitesmith/pkg/store/jsonl"
	"github.com/nstogner/sitesmith/pkg/store/sqlite"
)

// app holds the wired components. close releases them in reverse order.
type app struct {
	store       *sqlite.Store
	transcripts *jsonl.Transcripts
	provider    models.ModelProvider
	docker      *docker.DockerManager
	engine      *engine.Engine
	closers     []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := sqlite.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	a.transcripts, err = jsonl.NewTranscripts(cfg.TranscriptsPath())
	if err != nil {
		return nil, err
	}

	journal, err := newJournal(cfg, st)
	if err != nil {
		return nil, err
	}
	if j, ok := journal.(*badger.Journal); ok {
		a.closers = append(a.closers, j.Close)
	}

	a.provider, err = newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if g, ok := a.provider.(*gemini.GeminiModel); ok {
		a.closers = append(a.closers, func() error {
			g.Close()
			return nil
		})
	}

	var sp sandbox.Provider
	switch cfg.SandboxProvider {
	case "docker":
		dm, err := docker.New(docker.Config{
			PublishHost: cfg.PublishHost,
			Timeout:     cfg.SandboxTimeout,
			OnReap:      metrics.RecordReaped,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize sandbox manager: %w", err)
		}
		a.docker = dm
		a.closers = append(a.closers, dm.Close)
		sp = dm
	case "memory":
		slog.Warn("Using in-memory sandboxes; commands are simulated")
		sp = memory.New(nil)
	}

	sessions := sandbox.NewSessions(sp,
		sandbox.WithTemplate(cfg.SandboxTemplate),
		sandbox.WithTimeout(cfg.SandboxTimeout),
		sandbox.WithPreviewPort(cfg.PreviewPort),
		sandbox.WithScheme(cfg.PreviewScheme),
	)

	a.engine = engine.New(engine.Options{
		Store:         st,
		Journal:       journal,
		Provider:      a.provider,
		Model:         cfg.Model,
		Temperature:   float32(cfg.Temperature),
		Sessions:      sessions,
		MaxIterations: cfg.MaxIterations,
		Workers:       cfg.Workers,
		Transcripts:   a.transcripts,
	})

	ok = true
	return a, nil
}

func newJournal(cfg *config.Config, st *sqlite.Store) (step.Journal, error) {
	switch cfg.Journal {
	case "badger":
		j, err := badger.Open(badger.Config{Path: cfg.JournalPath(), Logger: slog.Default()})
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	case "memory":
		return step.NewMemoryJournal(), nil
	}
	return st, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (models.ModelProvider, error) {
	switch cfg.ModelProvider {
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable not set")
		}
		p, err := gemini.New(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, fmt.Errorf("initialize Gemini provider: %w", err)
		}
		return p, nil
	default:
		if cfg.OpenAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable not set")
		}
		return openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	}
}
