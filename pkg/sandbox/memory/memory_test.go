package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/sitesmith/pkg/sandbox"
)

func TestLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(nil)
	p.SetClock(func() time.Time { return now })

	id, err := p.Create(ctx, "tmpl")
	require.NoError(t, err)

	now = now.Add(9 * time.Minute)
	h, err := p.Connect(ctx, id)
	require.NoError(t, err)
	require.NoError(t, h.SetTimeout(ctx, 10*time.Minute))

	now = now.Add(9 * time.Minute)
	_, err = p.Connect(ctx, id)
	require.NoError(t, err, "lease should have been extended")

	now = now.Add(2 * time.Minute)
	_, err = p.Connect(ctx, id)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	id, _ := p.Create(ctx, "tmpl")
	h, err := p.Connect(ctx, id)
	require.NoError(t, err)

	var streamed string
	res, err := h.RunCommand(ctx, "echo hello world", func(s string) { streamed += s }, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", res.Stdout)
	assert.Equal(t, "hello world\n", streamed)

	_, err = h.RunCommand(ctx, "false", nil, nil)
	var exitErr *sandbox.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Result.ExitCode)

	assert.Equal(t, []string{"echo hello world", "false"}, p.Commands(id))
}

func TestFiles(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	id, _ := p.Create(ctx, "tmpl")
	h, _ := p.Connect(ctx, id)

	require.NoError(t, h.WriteFile(ctx, "/app/page.tsx", "export default 1"))
	got, err := h.ReadFile(ctx, "app/page.tsx")
	require.NoError(t, err)
	assert.Equal(t, "export default 1", got)

	_, err = h.ReadFile(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
