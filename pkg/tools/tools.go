package tools

import (
	"context"

	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/sandbox"
)

// Acquire returns a live handle to the run's sandbox.
type Acquire func(ctx context.Context) (sandbox.Handle, error)

// Result is the recorded outcome of a tool call.
type Result struct {
	// Output is the text returned to the model.
	Output string `json:"output"`
	// Files are merged into the network state when non-empty.
	Files map[string]string `json:"files,omitempty"`
	// Failed marks an output that describes a failure.
	Failed bool `json:"failed,omitempty"`
}

// Tool defines the interface that all agent tools must implement.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any // Simple representation of JSON schema
	// Execute validates input before touching the sandbox. Errors are
	// reported to the model as text by the Dispatcher.
	Execute(ctx context.Context, acquire Acquire, input map[string]any) (Result, error)
}

// Registry manages the available tools.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new, empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// DefaultRegistry holds terminal, createOrUpdateFiles and readFiles.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&TerminalTool{})
	r.Register(&CreateOrUpdateFilesTool{})
	r.Register(&ReadFilesTool{})
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	list := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Specs returns the model-facing declarations of all tools.
func (r *Registry) Specs() []models.ToolSpec {
	var specs []models.ToolSpec
	for _, t := range r.List() {
		specs = append(specs, models.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}
