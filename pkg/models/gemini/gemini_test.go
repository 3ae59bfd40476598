package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/nstogner/sitesmith/pkg/models"
)

func TestToSchema(t *testing.T) {
	s := toSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"files": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":    map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
					},
					"required": []any{"path", "content"},
				},
			},
		},
		"required": []string{"files"},
	})

	if s.Type != genai.TypeObject {
		t.Fatalf("Type = %v, want object", s.Type)
	}
	files := s.Properties["files"]
	if files == nil || files.Type != genai.TypeArray {
		t.Fatalf("files = %+v", files)
	}
	if files.Items.Properties["path"].Type != genai.TypeString {
		t.Errorf("path type = %v", files.Items.Properties["path"].Type)
	}
	if len(files.Items.Required) != 2 {
		t.Errorf("item required = %v", files.Items.Required)
	}
	if len(s.Required) != 1 || s.Required[0] != "files" {
		t.Errorf("required = %v", s.Required)
	}
}

func TestToContents(t *testing.T) {
	call := models.ToolUseContent{ID: "c1", Name: "terminal", Input: map[string]any{"command": "ls"}}
	msgs := []models.AgentMessage{
		models.Text(models.RoleUser, "build a todo app"),
		{Role: models.RoleAssistant, Content: []models.Content{{Type: models.ContentTypeToolUse, ToolUse: &call}}},
		models.ToolResult(call, "package.json"),
		models.Text(models.RoleAssistant, ""),
	}

	got := toContents(msgs)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (empty message dropped)", len(got))
	}
	if got[1].Role != "model" {
		t.Errorf("assistant role = %q", got[1].Role)
	}
	if got[2].Role != "user" {
		t.Errorf("tool result role = %q", got[2].Role)
	}
	fr, ok := got[2].Parts[0].(genai.FunctionResponse)
	if !ok || fr.Name != "terminal" {
		t.Errorf("function response = %+v", got[2].Parts[0])
	}
}
