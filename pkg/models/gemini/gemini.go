package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/nstogner/sitesmith/pkg/models"
)

const (
	// LevelTrace is a custom log level for detailed HTTP traffic.
	LevelTrace = slog.Level(-8)
)

// GeminiModel implements models.ModelProvider using the Google Gemini API.
type GeminiModel struct {
	client *genai.Client
}

var _ models.ModelProvider = (*GeminiModel)(nil)

// New creates a new GeminiModel.
func New(ctx context.Context, apiKey string) (*GeminiModel, error) {
	httpClient := &http.Client{
		Transport: &loggingTransport{
			base:   http.DefaultTransport,
			apiKey: apiKey,
		},
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiModel{client: client}, nil
}

type loggingTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// A custom http.Client bypasses the library's API key injection.
	if t.apiKey != "" && req.Header.Get("x-goog-api-key") == "" && req.URL.Query().Get("key") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("x-goog-api-key", t.apiKey)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		slog.Debug("Failed to dump Gemini request", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "Gemini REST Request", "url", req.URL.String(), "dump", string(reqDump))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Streaming bodies are not dumped so they are not consumed here.
	isStream := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") ||
		strings.Contains(req.URL.Query().Get("alt"), "sse")

	respDump, err := httputil.DumpResponse(resp, !isStream)
	if err != nil {
		slog.Debug("Failed to dump Gemini response", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "Gemini REST Response", "isStream", isStream, "dump", string(respDump))
	}

	return resp, nil
}

// Close releases resources.
func (m *GeminiModel) Close() {
	m.client.Close()
}

// List returns available models.
func (m *GeminiModel) List(ctx context.Context) ([]string, error) {
	iter := m.client.ListModels(ctx)
	var names []string
	for {
		model, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}
	return names, nil
}

// Stream sends the request to Gemini and returns a stream of the response.
func (m *GeminiModel) Stream(ctx context.Context, req models.Request) (models.ModelStream, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: request has no messages")
	}
	slog.Debug("Gemini.Stream: Request Parameters", "model", req.Model, "messageCount", len(req.Messages), "tools", len(req.Tools))

	gm := m.client.GenerativeModel(req.Model)
	gm.SetTemperature(req.Temperature)
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if len(req.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.InputSchema),
			})
		}
		gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	history := toContents(req.Messages)
	if len(history) == 0 {
		return nil, fmt.Errorf("gemini: request has no content")
	}

	cs := gm.StartChat()
	cs.History = history[:len(history)-1]
	last := history[len(history)-1]

	iter := cs.SendMessageStream(ctx, last.Parts...)
	return &geminiStream{iter: iter}, nil
}

// toContents converts messages to Gemini contents. Tool results are sent
// with the user role.
func toContents(messages []models.AgentMessage) []*genai.Content {
	var out []*genai.Content
	for _, msg := range messages {
		var parts []genai.Part
		for _, c := range msg.Content {
			switch c.Type {
			case models.ContentTypeText:
				if c.Text != nil && c.Text.Content != "" {
					parts = append(parts, genai.Text(c.Text.Content))
				}
			case models.ContentTypeToolUse:
				parts = append(parts, genai.FunctionCall{
					Name: c.ToolUse.Name,
					Args: c.ToolUse.Input,
				})
			case models.ContentTypeToolResult:
				parts = append(parts, genai.FunctionResponse{
					Name:     c.ToolResult.Name,
					Response: map[string]any{"result": c.ToolResult.Content},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

// toSchema converts a JSON schema object into a Gemini schema.
func toSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}
	schema := &genai.Schema{}
	switch s["type"] {
	case "object":
		schema.Type = genai.TypeObject
	case "array":
		schema.Type = genai.TypeArray
	case "string":
		schema.Type = genai.TypeString
	case "integer":
		schema.Type = genai.TypeInteger
	case "number":
		schema.Type = genai.TypeNumber
	case "boolean":
		schema.Type = genai.TypeBoolean
	}
	if d, ok := s["description"].(string); ok {
		schema.Description = d
	}
	if props, ok := s["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if ps, ok := p.(map[string]any); ok {
				schema.Properties[name] = toSchema(ps)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}
	switch req := s["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}
	return schema
}

type geminiStream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *geminiStream) FullMessage() (models.AgentMessage, error) {
	var fullText strings.Builder
	var toolCalls []models.Content

	slog.Debug("Aggregating Gemini response stream")

	for {
		resp, err := s.iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return models.AgentMessage{}, err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				switch p := part.(type) {
				case genai.Text:
					fullText.WriteString(string(p))
				case genai.FunctionCall:
					toolCalls = append(toolCalls, models.Content{
						Type: models.ContentTypeToolUse,
						ToolUse: &models.ToolUseContent{
							ID:    "call-" + uuid.New().String(),
							Name:  p.Name,
							Input: p.Args,
						},
					})
				}
			}
		}
	}

	content := []models.Content{}
	if fullText.Len() > 0 {
		content = append(content, models.Content{
			Type: models.ContentTypeText,
			Text: &models.TextContent{Content: fullText.String()},
		})
	}
	content = append(content, toolCalls...)

	return models.AgentMessage{Role: models.RoleAssistant, Content: content}, nil
}

func (s *geminiStream) Close() error {
	return nil
}
