package postprocess

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/step"
)

type echoModel struct {
	replies map[string]string
	err     error
	calls   int
}

func (m *echoModel) List(ctx context.Context) ([]string, error) { return nil, nil }

func (m *echoModel) Stream(ctx context.Context, req models.Request) (models.ModelStream, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	reply := m.replies[req.System]
	return &stream{msg: models.Text(models.RoleAssistant, reply)}, nil
}

type stream struct{ msg models.AgentMessage }

func (s *stream) FullMessage() (models.AgentMessage, error) { return s.msg, nil }
func (s *stream) Close() error                              { return nil }

func TestRun(t *testing.T) {
	m := &echoModel{replies: map[string]string{
		titlePrompt:    "  Todo App\n",
		responsePrompt: "I built a todo app with filters.",
	}}
	p := New(m, "gpt-4o")
	journal := step.NewMemoryJournal()

	res := p.Run(context.Background(), step.NewExecutor("run-1", journal), "<task_summary>todo</task_summary>")
	assert.Equal(t, "Todo App", res.Title)
	assert.Equal(t, "I built a todo app with filters.", res.Response)

	// Replay does not call the model again.
	again := p.Run(context.Background(), step.NewExecutor("run-1", journal), "<task_summary>todo</task_summary>")
	assert.Equal(t, res, again)
	assert.Equal(t, 2, m.calls)
}

func TestRunFallbacks(t *testing.T) {
	empty := &echoModel{replies: map[string]string{}}
	res := New(empty, "gpt-4o").Run(context.Background(), step.NewExecutor("run-1", step.NewMemoryJournal()), "s")
	assert.Equal(t, Result{Title: DefaultTitle, Response: DefaultResponse}, res)

	failing := &echoModel{err: errors.New("timeout")}
	res = New(failing, "gpt-4o").Run(context.Background(), step.NewExecutor("run-1", step.NewMemoryJournal()), "s")
	assert.Equal(t, Result{Title: DefaultTitle, Response: DefaultResponse}, res)
}
