package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nstogner/sitesmith/pkg/models"
)

// OpenAIModel implements models.ModelProvider using the OpenAI chat
// completions API.
type OpenAIModel struct {
	client *goopenai.Client
}

var _ models.ModelProvider = (*OpenAIModel)(nil)

// New creates an OpenAIModel. An empty baseURL uses the public API.
func New(apiKey, baseURL string) *OpenAIModel {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{client: goopenai.NewClientWithConfig(cfg)}
}

// List returns available models.
func (m *OpenAIModel) List(ctx context.Context) ([]string, error) {
	list, err := m.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Models))
	for _, model := range list.Models {
		names = append(names, model.ID)
	}
	sort.Strings(names)
	return names, nil
}

// Stream sends the request as a streaming chat completion.
func (m *OpenAIModel) Stream(ctx context.Context, req models.Request) (models.ModelStream, error) {
	slog.Debug("OpenAI.Stream: Request Parameters", "model", req.Model, "messageCount", len(req.Messages), "tools", len(req.Tools))

	messages, err := toMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}

	creq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    messages,
		Stream:      true,
	}
	for _, t := range req.Tools {
		creq.Tools = append(creq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	stream, err := m.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai stream error: %w", err)
	}
	return &openaiStream{stream: stream}, nil
}

// toMessages converts messages to chat completion messages. Each tool result
// becomes its own tool message.
func toMessages(system string, messages []models.AgentMessage) ([]goopenai.ChatCompletionMessage, error) {
	var out []goopenai.ChatCompletionMessage
	if system != "" {
		out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleTool:
			for _, c := range msg.Content {
				if c.Type != models.ContentTypeToolResult || c.ToolResult == nil {
					continue
				}
				out = append(out, goopenai.ChatCompletionMessage{
					Role:       goopenai.ChatMessageRoleTool,
					Content:    c.ToolResult.Content,
					ToolCallID: c.ToolResult.ToolUseID,
				})
			}
		case models.RoleAssistant:
			am := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: msg.PlainText(),
			}
			for _, call := range msg.ToolCalls() {
				args, err := json.Marshal(call.Input)
				if err != nil {
					return nil, fmt.Errorf("encoding arguments of %s: %w", call.Name, err)
				}
				am.ToolCalls = append(am.ToolCalls, goopenai.ToolCall{
					ID:   call.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, am)
		default:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: msg.PlainText(),
			})
		}
	}
	return out, nil
}

type openaiStream struct {
	stream *goopenai.ChatCompletionStream
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func (s *openaiStream) FullMessage() (models.AgentMessage, error) {
	var fullText strings.Builder
	calls := map[int]*pendingCall{}
	var order []int

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.AgentMessage{}, err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		fullText.WriteString(delta.Content)

		for i, tc := range delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := calls[idx]
			if !ok {
				pc = &pendingCall{}
				calls[idx] = pc
				order = append(order, idx)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
	}

	content := []models.Content{}
	if fullText.Len() > 0 {
		content = append(content, models.Content{
			Type: models.ContentTypeText,
			Text: &models.TextContent{Content: fullText.String()},
		})
	}
	for _, idx := range order {
		pc := calls[idx]
		input := map[string]any{}
		if raw := pc.args.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				// Keep the call so the tool can report invalid arguments.
				slog.Warn("Invalid tool call arguments", "tool", pc.name, "error", err)
				input = map[string]any{}
			}
		}
		id := pc.id
		if id == "" {
			id = "call-" + uuid.New().String()
		}
		content = append(content, models.Content{
			Type:    models.ContentTypeToolUse,
			ToolUse: &models.ToolUseContent{ID: id, Name: pc.name, Input: input},
		})
	}

	return models.AgentMessage{Role: models.RoleAssistant, Content: content}, nil
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}
