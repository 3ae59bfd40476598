package sandbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/sitesmith/pkg/sandbox"
	"github.com/nstogner/sitesmith/pkg/sandbox/memory"
	"github.com/nstogner/sitesmith/pkg/step"
)

type failingProvider struct{}

func (failingProvider) Create(ctx context.Context, template string) (string, error) {
	return "", errors.New("no capacity")
}

func (failingProvider) Connect(ctx context.Context, id string) (sandbox.Handle, error) {
	return nil, errors.New("unreachable")
}

func TestProvisionIsMemoized(t *testing.T) {
	ctx := context.Background()
	p := memory.New(nil)
	sessions := sandbox.NewSessions(p)
	journal := step.NewMemoryJournal()

	id1, err := sessions.Provision(ctx, step.NewExecutor("run-1", journal))
	require.NoError(t, err)

	// Replaying the run reuses the recorded sandbox.
	id2, err := sessions.Provision(ctx, step.NewExecutor("run-1", journal))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, p.Created)
}

func TestProvisionFailure(t *testing.T) {
	sessions := sandbox.NewSessions(failingProvider{})
	_, err := sessions.Provision(context.Background(), step.NewExecutor("run-1", step.NewMemoryJournal()))
	require.Error(t, err)
	assert.True(t, step.IsFailure(err))
	assert.Contains(t, err.Error(), "no capacity")
}

func TestAcquireExtendsLease(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := memory.New(nil)
	p.SetClock(func() time.Time { return now })
	sessions := sandbox.NewSessions(p, sandbox.WithTimeout(10*time.Minute))

	id, err := sessions.Provision(ctx, step.NewExecutor("run-1", step.NewMemoryJournal()))
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), p.Deadline(id))

	now = now.Add(5 * time.Minute)
	_, err = sessions.Acquire(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), p.Deadline(id))
}

func TestResolveHostIsStable(t *testing.T) {
	ctx := context.Background()
	p := memory.New(nil)
	sessions := sandbox.NewSessions(p)
	journal := step.NewMemoryJournal()

	ex := step.NewExecutor("run-1", journal)
	id, err := sessions.Provision(ctx, ex)
	require.NoError(t, err)

	url1, err := sessions.ResolveHost(ctx, ex, id)
	require.NoError(t, err)
	assert.Equal(t, "https://3000-"+id+".sandbox.local", url1)

	_, err = sessions.Acquire(ctx, id)
	require.NoError(t, err)

	url2, err := sessions.ResolveHost(ctx, step.NewExecutor("run-1", journal), id)
	require.NoError(t, err)
	assert.Equal(t, url1, url2)
}

func TestAcquireExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	p := memory.New(nil)
	p.SetClock(func() time.Time { return now })
	sessions := sandbox.NewSessions(p)

	id, err := sessions.Provision(ctx, step.NewExecutor("run-1", step.NewMemoryJournal()))
	require.NoError(t, err)

	now = now.Add(sandbox.DefaultTimeout + time.Second)
	_, err = sessions.Acquire(ctx, id)
	assert.ErrorIs(t, err, memory.ErrExpired)
}
