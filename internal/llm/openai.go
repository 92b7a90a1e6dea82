package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// OpenAIConfig configures an OpenAI-compatible chat completions backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses the public API
	Model   string
	// Stream requests server-sent chunks and accumulates them. Output is
	// identical; it only shortens time-to-first-byte on long generations.
	Stream     bool
	MaxRetries int
}

// OpenAI is a Model backed by the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
	stream bool
	logger *slog.Logger
}

// NewOpenAI builds an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		stream: cfg.Stream,
		logger: logger,
	}
}

// Name implements Model.
func (o *OpenAI) Name() string { return "openai/" + o.model }

// Respond implements Model.
func (o *OpenAI) Respond(ctx context.Context, messages []model.Message, tools []model.ToolSchema) (model.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: toOpenAIMessages(messages),
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.ParameterSchema),
			},
		})
	}

	var (
		msg openai.ChatCompletionMessage
		err error
	)
	if o.stream {
		msg, err = o.respondStreaming(ctx, params)
	} else {
		msg, err = o.respondOnce(ctx, params)
	}
	if err != nil {
		return model.Message{}, err
	}
	return fromOpenAIMessage(msg), nil
}

func (o *OpenAI) respondOnce(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletionMessage, error) {
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, ErrEmptyResponse
	}
	o.logger.Debug("llm: openai response",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message, nil
}

func (o *OpenAI) respondStreaming(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletionMessage, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		acc.AddChunk(stream.Current())
	}
	if err := stream.Err(); err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("llm: openai stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return openai.ChatCompletionMessage{}, ErrEmptyResponse
	}
	return acc.Choices[0].Message, nil
}

func toOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case model.RoleTool:
			out = append(out, openai.ToolMessage(m.Text(), m.ToolCallID))
		case model.RoleAssistant:
			if !m.HasToolCalls() {
				out = append(out, openai.AssistantMessage(m.Text()))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != nil {
				asst.Content.OfString = openai.String(*m.Content)
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: encodeArguments(tc.Arguments),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		default:
			out = append(out, openai.UserMessage(m.Text()))
		}
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) model.Message {
	out := model.Message{Role: model.RoleAssistant}
	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		content := msg.Content
		out.Content = &content
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return out
}
