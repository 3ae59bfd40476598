// Package outcome classifies a finished run.
package outcome

import (
	"github.com/nstogner/sitesmith/pkg/network"
)

// Kind is the terminal classification of a run.
type Kind string

const (
	KindResult Kind = "RESULT"
	KindError  Kind = "ERROR"
)

// ErrorMessage is shown to the user when a run ends in ERROR.
const ErrorMessage = "Something went wrong. Please try again."

// Outcome is what a run hands to persistence and returns to its caller.
type Outcome struct {
	Kind     Kind              `json:"kind"`
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Response string            `json:"response"`
	Files    map[string]string `json:"files"`
	Summary  string            `json:"summary"`
}

// Classify returns ERROR when the run has no summary or wrote no files.
func Classify(state *network.State) Kind {
	if state == nil || !state.HasSummary() || len(state.Files) == 0 {
		return KindError
	}
	return KindResult
}

// Content is the message text persisted for the outcome.
func (o Outcome) Content() string {
	if o.Kind == KindError {
		return ErrorMessage
	}
	return o.Response
}
