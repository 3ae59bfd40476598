// Package network holds the per-run shared state and the router that
// decides whether the agent network keeps iterating.
package network

import (
	"maps"
	"sort"

	"github.com/nstogner/sitesmith/pkg/models"
)

// State is shared by the agent and its tools for the duration of one run.
// It is mutated by one writer at a time and carries no locks.
type State struct {
	// Files maps sandbox paths to the content the agent wrote.
	Files map[string]string
	// Summary is the completion summary. Once set it never changes.
	Summary string
	// Messages is the conversation the agent sees, oldest first.
	Messages []models.AgentMessage
}

// NewState creates a run's state seeded with prior conversation memory.
func NewState(memory []models.AgentMessage) *State {
	return &State{
		Files:    make(map[string]string),
		Messages: append([]models.AgentMessage(nil), memory...),
	}
}

// HasSummary reports whether the completion summary was set.
func (s *State) HasSummary() bool {
	return s.Summary != ""
}

// SetSummary records the completion summary. It reports false and leaves the
// state unchanged if a summary already exists.
func (s *State) SetSummary(summary string) bool {
	if s.HasSummary() || summary == "" {
		return false
	}
	s.Summary = summary
	return true
}

// MergeFiles adds or overwrites files. Paths are never removed.
func (s *State) MergeFiles(files map[string]string) {
	if s.Files == nil {
		s.Files = make(map[string]string, len(files))
	}
	maps.Copy(s.Files, files)
}

// Paths returns the written file paths in lexical order.
func (s *State) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Append adds messages to the conversation.
func (s *State) Append(msgs ...models.AgentMessage) {
	s.Messages = append(s.Messages, msgs...)
}
