package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/step"
)

// Start executes submitted runs until ctx is done. Runs left pending by an
// earlier process are resumed first.
func (e *Engine) Start(ctx context.Context) error {
	created, cancel := e.store.SubscribeRuns()
	defer cancel()

	var g errgroup.Group
	g.SetLimit(e.workers)

	var mu sync.Mutex
	inflight := make(map[string]bool)

	dispatch := func(id string) {
		mu.Lock()
		if inflight[id] {
			mu.Unlock()
			return
		}
		inflight[id] = true
		mu.Unlock()

		g.Go(func() error {
			defer func() {
				mu.Lock()
				delete(inflight, id)
				mu.Unlock()
			}()
			e.process(ctx, id)
			return nil
		})
	}

	sweep := func() {
		runs, err := e.store.ListRuns(ctx, domain.RunPending)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("Listing pending runs failed", "error", err)
			}
			return
		}
		for _, r := range runs {
			dispatch(r.ID)
		}
	}

	slog.Info("Engine started", "workers", e.workers)
	sweep()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return ctx.Err()
		case id := <-created:
			dispatch(id)
		case <-ticker.C:
			sweep()
		}
	}
}

func (e *Engine) process(ctx context.Context, id string) {
	run, err := e.store.GetRun(ctx, id)
	if err != nil {
		slog.Error("Loading run failed", "runID", id, "error", err)
		return
	}
	if run.Status != domain.RunPending {
		return
	}

	slog.Info("Executing run", "runID", run.ID, "projectID", run.ProjectID)
	if _, err := e.Execute(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("Run interrupted, will resume", "runID", run.ID)
			return
		}
		slog.Error("Run failed", "runID", run.ID, "error", err)
	}
}

// Prune drops the step records of finished runs. It returns the number of
// runs pruned, or zero when the journal cannot forget.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	f, ok := e.journal.(step.Forgetter)
	if !ok {
		return 0, nil
	}
	n := 0
	for _, status := range []domain.RunStatus{domain.RunCompleted, domain.RunFailed} {
		runs, err := e.store.ListRuns(ctx, status)
		if err != nil {
			return n, err
		}
		for _, r := range runs {
			if err := f.Forget(ctx, r.ID); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
