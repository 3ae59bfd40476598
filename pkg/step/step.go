// Package step provides durable, memoized units of work.
//
// A run wraps every side effect in a named step. The first execution of a
// step records its result (or failure) in a Journal. When the same run is
// executed again, for example after a process restart, recorded steps return
// their recorded result instead of repeating the side effect.
package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Status describes how a step invocation was satisfied.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusReplayed Status = "replayed"
	StatusFailed   Status = "failed"
)

// Record is the journaled outcome of one step.
type Record struct {
	Name       string          `json:"name" cbor:"name"`
	Output     json.RawMessage `json:"output,omitempty" cbor:"output,omitempty"`
	Failed     bool            `json:"failed,omitempty" cbor:"failed,omitempty"`
	Error      string          `json:"error,omitempty" cbor:"error,omitempty"`
	RecordedAt time.Time       `json:"recorded_at" cbor:"recorded_at"`
}

// Journal persists step records keyed by run and step name.
type Journal interface {
	// Load returns the record for the step, and false if none was recorded.
	Load(ctx context.Context, runID, name string) (Record, bool, error)
	// Save records the outcome of a step. Saving an existing name replaces it.
	Save(ctx context.Context, runID string, rec Record) error
}

// Forgetter is implemented by journals that can drop a run's records.
type Forgetter interface {
	Forget(ctx context.Context, runID string) error
}

// Failure is returned for a step whose work failed, both on first execution
// and when the recorded failure is replayed.
type Failure struct {
	Step    string
	Message string
	err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("step %q failed: %s", f.Step, f.Message)
}

// Unwrap returns the original error. It is nil for replayed failures.
func (f *Failure) Unwrap() error { return f.err }

// Observer is notified after every step invocation.
type Observer func(name string, status Status)

// Executor runs steps for a single run. It is not safe for concurrent use:
// steps of one run execute strictly in the order they are issued.
type Executor struct {
	runID    string
	journal  Journal
	observer Observer
	seen     map[string]int
}

// NewExecutor creates an Executor for the given run.
func NewExecutor(runID string, journal Journal) *Executor {
	return &Executor{
		runID:   runID,
		journal: journal,
		seen:    make(map[string]int),
	}
}

// WithObserver sets a callback invoked after each step.
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observer = o
	return e
}

// RunID returns the run this executor belongs to.
func (e *Executor) RunID() string { return e.runID }

// Run executes work as the step called name, or returns the recorded result
// if the step already ran for this run. The value returned by work is stored
// as JSON.
//
// A name issued more than once within the same execution is suffixed with its
// call-order index ("name#2", "name#3", ...), so repeated steps keep distinct
// identities as long as the run issues them in the same order on replay.
func (e *Executor) Run(ctx context.Context, name string, work func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	key := e.uniqueName(name)

	rec, ok, err := e.journal.Load(ctx, e.runID, key)
	if err != nil {
		return nil, fmt.Errorf("loading step %q: %w", key, err)
	}
	if ok {
		slog.Debug("Replaying step", "runID", e.runID, "step", key, "failed", rec.Failed)
		e.observe(key, StatusReplayed)
		if rec.Failed {
			return nil, &Failure{Step: key, Message: rec.Error}
		}
		return rec.Output, nil
	}

	v, workErr := work(ctx)
	if workErr != nil && ctx.Err() != nil {
		// Interrupted, not failed: leave the step unrecorded so it runs again.
		return nil, workErr
	}

	rec = Record{Name: key, RecordedAt: time.Now().UTC()}
	if workErr != nil {
		rec.Failed = true
		rec.Error = workErr.Error()
	} else {
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding step %q result: %w", key, err)
		}
		rec.Output = out
	}

	if err := e.journal.Save(ctx, e.runID, rec); err != nil {
		return nil, fmt.Errorf("recording step %q: %w", key, err)
	}

	if workErr != nil {
		slog.Debug("Step failed", "runID", e.runID, "step", key, "error", workErr)
		e.observe(key, StatusFailed)
		return nil, &Failure{Step: key, Message: workErr.Error(), err: workErr}
	}
	e.observe(key, StatusExecuted)
	return rec.Output, nil
}

func (e *Executor) uniqueName(name string) string {
	e.seen[name]++
	if n := e.seen[name]; n > 1 {
		return fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

func (e *Executor) observe(name string, status Status) {
	if e.observer != nil {
		e.observer(name, status)
	}
}

// Do runs fn as a step and decodes its recorded result into T.
func Do[T any](ctx context.Context, e *Executor, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := e.Run(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding step %q result: %w", name, err)
	}
	return out, nil
}

// IsFailure reports whether err is a recorded step failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
