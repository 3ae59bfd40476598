package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/store"
)

func TestTranscriptRoundTrip(t *testing.T) {
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	msgs := []models.AgentMessage{
		models.Text(models.RoleUser, "build a todo app"),
		models.Text(models.RoleAssistant, "<task_summary>done</task_summary>"),
	}
	require.NoError(t, tr.Write(Header{RunID: "run-1", ProjectID: "p-1", Outcome: "RESULT"}, msgs))

	h, got, err := tr.Read("run-1")
	require.NoError(t, err)
	assert.Equal(t, TypeHeader, h.Type)
	assert.Equal(t, "p-1", h.ProjectID)
	assert.Equal(t, "RESULT", h.Outcome)
	assert.False(t, h.Timestamp.IsZero())
	assert.Equal(t, msgs, got)
}

func TestTranscriptEntriesAreLinked(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewTranscripts(dir)
	require.NoError(t, err)
	require.NoError(t, tr.Write(Header{RunID: "run-1"}, []models.AgentMessage{
		models.Text(models.RoleUser, "a"),
		models.Text(models.RoleAssistant, "b"),
	}))

	f, err := os.Open(filepath.Join(dir, "run-1.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var entries []Entry
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].ParentID)
	require.NotNil(t, entries[1].ParentID)
	assert.Equal(t, entries[0].ID, *entries[1].ParentID)
}

func TestTranscriptWriteReplaces(t *testing.T) {
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tr.Write(Header{RunID: "run-1"}, []models.AgentMessage{models.Text(models.RoleUser, "old")}))
	require.NoError(t, tr.Write(Header{RunID: "run-1"}, []models.AgentMessage{models.Text(models.RoleUser, "new")}))

	_, got, err := tr.Read("run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].PlainText())

	ids, err := tr.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

func TestTranscriptMissing(t *testing.T) {
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	_, _, err = tr.Read("nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, tr.Delete("nope"))
}

func TestTranscriptRequiresRunID(t *testing.T) {
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, tr.Write(Header{}, nil))
}
