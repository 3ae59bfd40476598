package step

import (
	"context"
	"sync"
)

// MemoryJournal keeps step records in process memory. Records survive a
// retried run within the same process but not a restart.
type MemoryJournal struct {
	mu      sync.RWMutex
	records map[string]map[string]Record
}

var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{records: make(map[string]map[string]Record)}
}

func (j *MemoryJournal) Load(ctx context.Context, runID, name string) (Record, bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.records[runID][name]
	return rec, ok, nil
}

func (j *MemoryJournal) Save(ctx context.Context, runID string, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	run, ok := j.records[runID]
	if !ok {
		run = make(map[string]Record)
		j.records[runID] = run
	}
	run[rec.Name] = rec
	return nil
}

func (j *MemoryJournal) Forget(ctx context.Context, runID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.records, runID)
	return nil
}

// Len returns the number of records stored for a run.
func (j *MemoryJournal) Len(runID string) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records[runID])
}
