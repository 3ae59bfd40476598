// Package postprocess derives the user-facing title and reply from a run's
// completion summary.
package postprocess

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nstogner/sitesmith/pkg/agent"
	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/step"
)

// Step names of the two generators.
const (
	StepTitle    = "generate-fragment-title"
	StepResponse = "generate-response"
)

// Fallbacks used when a generator returns no text.
const (
	DefaultTitle    = "Fragment"
	DefaultResponse = "Here you go"
)

const titlePrompt = `You are an assistant that generates a short, descriptive title for a code fragment based on its <task_summary>.
The title should be:
- Relevant to what was built or changed
- Max 3 words
- Written in title case (e.g., "Landing Page", "Chat Widget")
- No punctuation, quotes, or prefixes

Only return the raw title.`

const responsePrompt = `You are the final agent in a multi-agent system.
Your job is to generate a short, user-friendly message explaining what was just built, based on the <task_summary> provided by the other agents.
The application is a custom Next.js app tailored to the user's request.
Reply in a casual tone, as if you're wrapping up the process for the user. No need to mention the <task_summary> tag.
Your message should be 1 to 3 sentences, describing what the app does or what was changed, as if you're saying "Here's what I built for you."
Do not add code, tags, or metadata. Only return the plain text response.`

// Result is the output of the pipeline.
type Result struct {
	Title    string
	Response string
}

// Pipeline runs the title and response generators.
type Pipeline struct {
	provider models.ModelProvider
	title    agent.Config
	response agent.Config
}

// New creates a Pipeline that uses model for both generators.
func New(provider models.ModelProvider, model string) *Pipeline {
	return &Pipeline{
		provider: provider,
		title:    agent.Config{Name: "fragment-title-generator", System: titlePrompt, Model: model},
		response: agent.Config{Name: "response-generator", System: responsePrompt, Model: model},
	}
}

// Run derives title and response from summary. Each generator is a durable
// step executed in order. A failing generator falls back to its default text
// instead of failing the run.
func (p *Pipeline) Run(ctx context.Context, ex *step.Executor, summary string) Result {
	return Result{
		Title:    p.generate(ctx, ex, StepTitle, p.title, summary, DefaultTitle),
		Response: p.generate(ctx, ex, StepResponse, p.response, summary, DefaultResponse),
	}
}

func (p *Pipeline) generate(ctx context.Context, ex *step.Executor, name string, cfg agent.Config, summary, fallback string) string {
	text, err := step.Do(ctx, ex, name, func(ctx context.Context) (string, error) {
		return agent.Generate(ctx, p.provider, cfg, summary)
	})
	if err != nil {
		slog.Warn("Post-processing generator failed", "runID", ex.RunID(), "generator", cfg.Name, "error", err)
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	return text
}
