// Package jsonl keeps run transcripts as JSON Lines files, one per run.
// The first line is a header; each following line is one conversation entry
// linked to the entry before it.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/store"
)

// EntryType identifies the kind of a transcript line.
type EntryType string

const (
	TypeHeader  EntryType = "header"
	TypeMessage EntryType = "message"
)

// Header describes the run a transcript belongs to.
type Header struct {
	Type      EntryType `json:"type"`
	RunID     string    `json:"runId"`
	ProjectID string    `json:"projectId"`
	Outcome   string    `json:"outcome,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is one message in a transcript.
type Entry struct {
	Type      EntryType           `json:"type"`
	ID        string              `json:"id"`
	ParentID  *string             `json:"parentId"`
	Timestamp time.Time           `json:"timestamp"`
	Message   models.AgentMessage `json:"message"`
}

// Transcripts stores run transcripts in a directory.
type Transcripts struct {
	mu  sync.Mutex
	dir string
}

// NewTranscripts creates the directory if needed.
func NewTranscripts(dir string) (*Transcripts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcripts dir: %w", err)
	}
	return &Transcripts{dir: dir}, nil
}

func (t *Transcripts) path(runID string) string {
	return filepath.Join(t.dir, runID+".jsonl")
}

// Write replaces the transcript of h.RunID. The file is written to a
// temporary path and renamed, so readers never see a partial transcript.
func (t *Transcripts) Write(h Header, msgs []models.AgentMessage) error {
	if h.RunID == "" {
		return errors.New("transcript run ID is required")
	}
	h.Type = TypeHeader
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tmp, err := os.CreateTemp(t.dir, h.RunID+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	if err := enc.Encode(h); err != nil {
		tmp.Close()
		return err
	}
	var parent *string
	for _, m := range msgs {
		e := Entry{
			Type:      TypeMessage,
			ID:        uuid.New().String(),
			ParentID:  parent,
			Timestamp: h.Timestamp,
			Message:   m,
		}
		if err := enc.Encode(e); err != nil {
			tmp.Close()
			return err
		}
		id := e.ID
		parent = &id
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), t.path(h.RunID))
}

// Read returns a run's transcript. It returns store.ErrNotFound if the run
// has none.
func (t *Transcripts) Read(runID string) (Header, []models.AgentMessage, error) {
	f, err := os.Open(t.path(runID))
	if errors.Is(err, os.ErrNotExist) {
		return Header{}, nil, store.ErrNotFound
	}
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var h Header
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Header{}, nil, err
		}
		return Header{}, nil, fmt.Errorf("transcript %s: missing header", runID)
	}
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return Header{}, nil, fmt.Errorf("transcript %s: header: %w", runID, err)
	}

	var msgs []models.AgentMessage
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue // skip bad lines
		}
		if e.Type == TypeMessage {
			msgs = append(msgs, e.Message)
		}
	}
	return h, msgs, scanner.Err()
}

// List returns the run IDs that have transcripts, most recent first.
func (t *Transcripts) List() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, err
	}
	type item struct {
		id  string
		mod time.Time
	}
	var items []item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: strings.TrimSuffix(name, ".jsonl"), mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.After(items[j].mod) })

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// Delete removes a run's transcript. Deleting a missing transcript is not
// an error.
func (t *Transcripts) Delete(runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := os.Remove(t.path(runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
