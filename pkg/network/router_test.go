package network

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		summary   string
		iteration int
		want      Decision
	}{
		{"fresh run", "", 0, Continue},
		{"below ceiling", "", 14, Continue},
		{"at ceiling", "", 15, Stop},
		{"summary set", "<task_summary>done</task_summary>", 3, Stop},
		{"summary at ceiling", "done", 15, Stop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(nil)
			s.SetSummary(tt.summary)
			assert.Equal(t, tt.want, Decide(s, tt.iteration, DefaultMaxIterations))
		})
	}
}

type scriptedAgent struct {
	calls     int
	summaryAt int
	err       error
}

func (a *scriptedAgent) Name() string { return "code-agent" }

func (a *scriptedAgent) Turn(ctx context.Context, state *State, iteration int) error {
	a.calls++
	if a.err != nil {
		return a.err
	}
	state.MergeFiles(map[string]string{"app/page.tsx": "v" + strconv.Itoa(iteration)})
	if a.summaryAt > 0 && a.calls == a.summaryAt {
		state.SetSummary("<task_summary>built</task_summary>")
	}
	return nil
}

func TestNetworkStopsOnSummary(t *testing.T) {
	agent := &scriptedAgent{summaryAt: 3}
	state := NewState(nil)

	n, err := New(agent, 0).Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, agent.calls, "no turn after the summary")
	assert.True(t, state.HasSummary())
}

func TestNetworkEnforcesCeiling(t *testing.T) {
	agent := &scriptedAgent{}
	state := NewState(nil)

	n, err := New(agent, DefaultMaxIterations).Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.Equal(t, 15, agent.calls)
	assert.False(t, state.HasSummary())
}

func TestNetworkAgentError(t *testing.T) {
	agent := &scriptedAgent{err: errors.New("model unavailable")}
	n, err := New(agent, 0).Run(context.Background(), NewState(nil))
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestSummaryIsSetOnce(t *testing.T) {
	s := NewState(nil)
	assert.True(t, s.SetSummary("first"))
	assert.False(t, s.SetSummary("second"))
	assert.Equal(t, "first", s.Summary)
}

func TestMergeFiles(t *testing.T) {
	s := NewState(nil)
	s.MergeFiles(map[string]string{"a.txt": "x", "b.txt": "y"})
	assert.Equal(t, map[string]string{"a.txt": "x", "b.txt": "y"}, s.Files)

	s.MergeFiles(map[string]string{"a.txt": "z"})
	assert.Equal(t, map[string]string{"a.txt": "z", "b.txt": "y"}, s.Files)
	assert.Equal(t, []string{"a.txt", "b.txt"}, s.Paths())
}
