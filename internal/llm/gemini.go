package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini is a Model backed by the Gemini generative API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini dials the Gemini API. Call Close when done.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, logger: logger}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error { return g.client.Close() }

// Name implements Model.
func (g *Gemini) Name() string { return "gemini/" + g.model }

// Respond implements Model. Gemini function calls carry no id, so ids are
// minted here and mapped back to function names for the follow-up turn.
func (g *Gemini) Respond(ctx context.Context, messages []model.Message, tools []model.ToolSchema) (model.Message, error) {
	system, history, err := toGeminiContents(messages)
	if err != nil {
		return model.Message{}, err
	}

	m := g.client.GenerativeModel(g.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.ParameterSchema),
			}
		}
		m.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	last := history[len(history)-1]
	cs := m.StartChat()
	cs.History = history[:len(history)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return model.Message{}, fmt.Errorf("llm: gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Message{}, ErrEmptyResponse
	}
	if resp.UsageMetadata != nil {
		g.logger.Debug("llm: gemini response",
			"model", g.model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return fromGeminiParts(resp.Candidates[0].Content.Parts), nil
}

var errNoUserTurn = errors.New("llm: gemini: conversation must end with a user or tool turn")

// toGeminiContents splits out system text and converts the rest. Consecutive
// tool results are merged into one user turn of function responses.
func toGeminiContents(messages []model.Message) (string, []*genai.Content, error) {
	var (
		system  []string
		out     []*genai.Content
		callFor = map[string]string{} // tool call id -> function name
	)
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Text())
		case model.RoleAssistant:
			c := &genai.Content{Role: "model"}
			if t := m.Text(); t != "" {
				c.Parts = append(c.Parts, genai.Text(t))
			}
			for _, tc := range m.ToolCalls {
				callFor[tc.ID] = tc.Name
				c.Parts = append(c.Parts, genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
		case model.RoleTool:
			part := genai.FunctionResponse{
				Name:     callFor[m.ToolCallID],
				Response: map[string]any{"result": m.Text()},
			}
			if n := len(out); n > 0 && out[n-1].Role == "user" && isFunctionResponses(out[n-1]) {
				out[n-1].Parts = append(out[n-1].Parts, part)
				continue
			}
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{part}})
		default:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Text())}})
		}
	}
	if len(out) == 0 || out[len(out)-1].Role != "user" {
		return "", nil, errNoUserTurn
	}
	return strings.Join(system, "\n\n"), out, nil
}

func isFunctionResponses(c *genai.Content) bool {
	for _, p := range c.Parts {
		if _, ok := p.(genai.FunctionResponse); !ok {
			return false
		}
	}
	return len(c.Parts) > 0
}

func fromGeminiParts(parts []genai.Part) model.Message {
	out := model.Message{Role: model.RoleAssistant}
	var text strings.Builder
	for _, p := range parts {
		switch v := p.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCallRequest{
				ID:        "call_" + uuid.NewString(),
				Name:      v.Name,
				Arguments: v.Args,
			})
		}
	}
	if text.Len() > 0 || len(out.ToolCalls) == 0 {
		s := text.String()
		out.Content = &s
	}
	return out
}

// toGeminiSchema converts a JSON schema object into Gemini's schema subset.
// Unsupported keywords are dropped.
func toGeminiSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}
	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if enum, ok := s["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				out.Enum = append(out.Enum, str)
			}
		}
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	if req, ok := s["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				out.Required = append(out.Required, str)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = toGeminiSchema(items)
	}
	return out
}
