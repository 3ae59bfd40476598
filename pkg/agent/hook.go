package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/network"
)

// SummaryMarker signals that the agent considers the task complete.
const SummaryMarker = "<task_summary>"

// LastAssistantText returns the text of the most recent assistant message,
// with its text parts joined without a separator.
func LastAssistantText(msgs []models.AgentMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			return msgs[i].PlainText()
		}
	}
	return ""
}

// SummaryHook stores the last assistant text as the run summary when it
// carries the completion marker. An existing summary is never replaced.
func SummaryHook(ctx context.Context, state *network.State, result *TurnResult) *TurnResult {
	text := LastAssistantText(result.Output)
	if text == "" || !strings.Contains(text, SummaryMarker) {
		return result
	}
	if state.SetSummary(text) {
		slog.Info("Task summary received", "length", len(text))
	}
	return result
}
