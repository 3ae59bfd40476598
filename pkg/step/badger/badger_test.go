package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/sitesmith/pkg/step"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	_, ok, err := j.Load(ctx, "run-1", "get-sandbox-id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.Save(ctx, "run-1", step.Record{Name: "get-sandbox-id", Output: []byte(`"sb-1"`)}))

	rec, ok, err := j.Load(ctx, "run-1", "get-sandbox-id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"sb-1"`, string(rec.Output))
	assert.False(t, rec.Failed)
}

func TestJournalReplaysExecutorSteps(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	calls := 0
	work := func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("sandbox quota exceeded")
	}

	for i := 0; i < 2; i++ {
		_, err := step.Do(ctx, step.NewExecutor("run-1", j), "get-sandbox-id", work)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox quota exceeded")
	}
	assert.Equal(t, 1, calls)
}

func TestJournalForget(t *testing.T) {
	ctx := context.Background()
	j, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Save(ctx, "run-1", step.Record{Name: "a"}))
	require.NoError(t, j.Save(ctx, "run-2", step.Record{Name: "a"}))
	require.NoError(t, j.Forget(ctx, "run-1"))

	_, ok, err := j.Load(ctx, "run-1", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = j.Load(ctx, "run-2", "a")
	require.NoError(t, err)
	assert.True(t, ok)
}
