package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const (
	ToolNameCreateOrUpdateFiles = "createOrUpdateFiles"
	ToolNameReadFiles           = "readFiles"
)

// --- Create Or Update Files Tool ---

type CreateOrUpdateFilesTool struct{}

func (t *CreateOrUpdateFilesTool) Name() string { return ToolNameCreateOrUpdateFiles }

func (t *CreateOrUpdateFilesTool) Description() string {
	return "Create or update files in the sandbox"
}

func (t *CreateOrUpdateFilesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"files": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":    map[string]any{"type": "string", "description": "The file path to write to."},
						"content": map[string]any{"type": "string", "description": "The content to write."},
					},
					"required": []string{"path", "content"},
				},
			},
		},
		"required": []string{"files"},
	}
}

type fileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Execute writes the files in order and stops at the first failure. Files
// are only reported for merging when the whole batch was written.
func (t *CreateOrUpdateFilesTool) Execute(ctx context.Context, acquire Acquire, input map[string]any) (Result, error) {
	raw, ok := input["files"].([]any)
	if !ok {
		return Result{}, fmt.Errorf("argument 'files' is required and must be an array")
	}
	entries := make([]fileEntry, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return Result{}, fmt.Errorf("files[%d] must be an object", i)
		}
		path, ok := m["path"].(string)
		if !ok || path == "" {
			return Result{}, fmt.Errorf("argument 'files[%d].path' is required and must be a string", i)
		}
		content, ok := m["content"].(string)
		if !ok {
			return Result{}, fmt.Errorf("argument 'files[%d].content' is required and must be a string", i)
		}
		entries = append(entries, fileEntry{Path: path, Content: content})
	}

	sb, err := acquire(ctx)
	if err != nil {
		return Result{}, err
	}

	written := make(map[string]string, len(entries))
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		slog.Info("Writing file", "sandboxID", sb.ID(), "path", e.Path, "size", len(e.Content))
		if err := sb.WriteFile(ctx, e.Path, e.Content); err != nil {
			return Result{}, fmt.Errorf("failed to write %s after writing %d of %d files: %w", e.Path, len(paths), len(entries), err)
		}
		written[e.Path] = e.Content
		paths = append(paths, e.Path)
	}

	return Result{
		Output: fmt.Sprintf("Wrote %d file(s): %s", len(paths), strings.Join(paths, ", ")),
		Files:  written,
	}, nil
}

// --- Read Files Tool ---

type ReadFilesTool struct{}

func (t *ReadFilesTool) Name() string { return ToolNameReadFiles }

func (t *ReadFilesTool) Description() string {
	return "Read files from the sandbox"
}

func (t *ReadFilesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"files": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "The file paths to read.",
			},
		},
		"required": []string{"files"},
	}
}

// Execute returns a JSON array of {path, content} objects.
func (t *ReadFilesTool) Execute(ctx context.Context, acquire Acquire, input map[string]any) (Result, error) {
	raw, ok := input["files"].([]any)
	if !ok {
		return Result{}, fmt.Errorf("argument 'files' is required and must be an array")
	}
	paths := make([]string, 0, len(raw))
	for i, item := range raw {
		p, ok := item.(string)
		if !ok || p == "" {
			return Result{}, fmt.Errorf("argument 'files[%d]' must be a string", i)
		}
		paths = append(paths, p)
	}

	sb, err := acquire(ctx)
	if err != nil {
		return Result{}, err
	}

	contents := make([]fileEntry, 0, len(paths))
	for _, p := range paths {
		slog.Info("Reading file", "sandboxID", sb.ID(), "path", p)
		content, err := sb.ReadFile(ctx, p)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read %s: %w", p, err)
		}
		contents = append(contents, fileEntry{Path: p, Content: content})
	}

	out, err := json.Marshal(contents)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: string(out)}, nil
}
