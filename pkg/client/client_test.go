package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/server"
	"github.com/nstogner/sitesmith/pkg/store/sqlite"
)

type pendingEngine struct{ store *sqlite.Store }

func (e pendingEngine) Submit(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if _, err := e.store.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}
	run := &domain.Run{ID: uuid.New().String(), ProjectID: req.ProjectID, Value: req.Value}
	return run, e.store.CreateRun(ctx, run)
}

func newTestClient(t *testing.T) (*Client, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := httptest.NewServer(server.New(s, pendingEngine{s}, nil).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), s
}

func TestProjectsAndMessages(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	p, err := c.CreateProject(ctx, "build a todo app")
	require.NoError(t, err)

	got, err := c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	_, err = c.PostMessage(ctx, p.ID, "add dark mode")
	require.NoError(t, err)

	msgs, err := c.ListMessages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "add dark mode", msgs[1].Content)

	list, err := c.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	run, err := c.SendEvent(ctx, domain.RunRequest{Value: "again", ProjectID: p.ID})
	require.NoError(t, err)
	fetched, err := c.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPending, fetched.Status)
}

func TestAPIError(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetProject(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = c.CreateProject(context.Background(), "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestStream(t *testing.T) {
	c, s := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := c.CreateProject(ctx, "build a todo app")
	require.NoError(t, err)

	msgs, err := c.Stream(ctx, p.ID)
	require.NoError(t, err)

	next := func() domain.Message {
		select {
		case m := <-msgs:
			return m
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message")
		}
		return domain.Message{}
	}
	assert.Equal(t, "build a todo app", next().Content)

	require.NoError(t, s.CreateMessage(ctx, &domain.Message{
		ID: "done", ProjectID: p.ID, Content: outcomeText,
		Role: domain.RoleAssistant, Type: domain.TypeError,
	}))
	m := next()
	assert.Equal(t, domain.TypeError, m.Type)

	cancel()
	for range msgs {
	}
}

const outcomeText = "Something went wrong. Please try again."
