package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/step"
	"github.com/nstogner/sitesmith/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newProject(t *testing.T, s *Store, name string) *domain.Project {
	t.Helper()
	p := &domain.Project{ID: uuid.New().String(), Name: name}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestProjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := newProject(t, s, "quiet-river")
	second := newProject(t, s, "brave-otter")

	got, err := s.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "quiet-river", got.Name)

	_, err = s.GetProject(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// A new message moves the first project to the top.
	require.NoError(t, s.CreateMessage(ctx, &domain.Message{
		ID: uuid.New().String(), ProjectID: first.ID, Content: "hi",
		Role: domain.RoleUser, Type: domain.TypeResult,
		CreatedAt: time.Now().UTC().Add(time.Second),
	}))

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestMessagesWithFragment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newProject(t, s, "quiet-river")

	updates, cancel := s.Subscribe()
	defer cancel()

	user := &domain.Message{ID: "m-1", ProjectID: p.ID, Content: "build a todo app", Role: domain.RoleUser, Type: domain.TypeResult}
	require.NoError(t, s.CreateMessage(ctx, user))
	assert.Equal(t, p.ID, <-updates)

	result := &domain.Message{
		ID: "m-2", ProjectID: p.ID, Content: "Here is your todo app.",
		Role: domain.RoleAssistant, Type: domain.TypeResult,
		Fragment: &domain.Fragment{
			ID:         "f-1",
			SandboxURL: "https://3000-sbx.example",
			Title:      "Todo App",
			Files:      map[string]string{"app/page.tsx": "export default 1"},
		},
		CreatedAt: user.CreatedAt.Add(time.Millisecond),
	}
	require.NoError(t, s.CreateMessage(ctx, result))
	// Saving the same message again is a no-op.
	require.NoError(t, s.CreateMessage(ctx, result))

	msgs, err := s.ListMessages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[0].Fragment)
	require.NotNil(t, msgs[1].Fragment)
	assert.Equal(t, "Todo App", msgs[1].Fragment.Title)
	assert.Equal(t, "https://3000-sbx.example", msgs[1].Fragment.SandboxURL)
	assert.Equal(t, map[string]string{"app/page.tsx": "export default 1"}, msgs[1].Fragment.Files)
}

func TestRecentMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newProject(t, s, "quiet-river")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		require.NoError(t, s.CreateMessage(ctx, &domain.Message{
			ID: fmt.Sprintf("m-%d", i), ProjectID: p.ID, Content: fmt.Sprintf("msg %d", i),
			Role: domain.RoleUser, Type: domain.TypeResult,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := s.RecentMessages(ctx, p.ID, time.Now(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "msg 7", recent[0].Content)
	assert.Equal(t, "msg 3", recent[4].Content)

	// Messages created at or after the cutoff are excluded.
	recent, err = s.RecentMessages(ctx, p.ID, base.Add(2*time.Minute), 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "msg 1", recent[0].Content)
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, cancel := s.SubscribeRuns()
	defer cancel()

	run := &domain.Run{ID: "run-1", ProjectID: "p-1", Value: "build"}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.Equal(t, "run-1", <-created)
	assert.Equal(t, domain.RunPending, run.Status)

	pending, err := s.ListRuns(ctx, domain.RunPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.SetRunStatus(ctx, "run-1", domain.RunCompleted))
	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)

	pending, err = s.ListRuns(ctx, domain.RunPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.True(t, errors.Is(s.SetRunStatus(ctx, "missing", domain.RunFailed), store.ErrNotFound))
}

func TestStepJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	calls := 0
	work := func(ctx context.Context) (string, error) {
		calls++
		return "sbx-1", nil
	}
	got, err := step.Do(ctx, step.NewExecutor("run-1", s), "get-sandbox-id", work)
	require.NoError(t, err)
	assert.Equal(t, "sbx-1", got)

	got, err = step.Do(ctx, step.NewExecutor("run-1", s), "get-sandbox-id", work)
	require.NoError(t, err)
	assert.Equal(t, "sbx-1", got)
	assert.Equal(t, 1, calls)

	_, err = step.Do(ctx, step.NewExecutor("run-1", s), "generate-response", func(ctx context.Context) (string, error) {
		return "", errors.New("model unavailable")
	})
	require.Error(t, err)

	rec, ok, err := s.Load(ctx, "run-1", "generate-response")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Failed)
	assert.Contains(t, rec.Error, "model unavailable")

	rec, ok, err = s.Load(ctx, "run-1", "get-sandbox-id")
	require.NoError(t, err)
	require.True(t, ok)
	var id string
	require.NoError(t, json.Unmarshal(rec.Output, &id))
	assert.Equal(t, "sbx-1", id)

	_, ok, err = s.Load(ctx, "run-2", "get-sandbox-id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Forget(ctx, "run-1"))
	_, ok, err = s.Load(ctx, "run-1", "get-sandbox-id")
	require.NoError(t, err)
	assert.False(t, ok)
}
