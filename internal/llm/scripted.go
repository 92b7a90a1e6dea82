package llm

import (
	"context"
	"sync"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// Step is one scripted model turn. Exactly one of Reply, Err or Func is used,
// checked in that order of precedence: Func, Err, Reply.
type Step struct {
	Reply model.Message
	Err   error
	Func  func(ctx context.Context, messages []model.Message) (model.Message, error)
}

// Scripted replays a fixed sequence of turns and records every call. It
// backs offline runs and tests. After the script is exhausted the last step
// repeats.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	next  int
	calls [][]model.Message
	tools [][]model.ToolSchema
}

// NewScripted returns a model that plays steps in order.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Say is a Step replying with plain text.
func Say(text string) Step {
	return Step{Reply: model.TextMessage(model.RoleAssistant, text)}
}

// Call is a Step requesting the given tool calls.
func Call(calls ...model.ToolCallRequest) Step {
	return Step{Reply: model.Message{Role: model.RoleAssistant, ToolCalls: calls}}
}

// Name implements Model.
func (s *Scripted) Name() string { return "scripted" }

// Respond implements Model.
func (s *Scripted) Respond(ctx context.Context, messages []model.Message, tools []model.ToolSchema) (model.Message, error) {
	s.mu.Lock()
	s.calls = append(s.calls, model.CloneMessages(messages))
	s.tools = append(s.tools, tools)
	var step Step
	if len(s.steps) > 0 {
		step = s.steps[min(s.next, len(s.steps)-1)]
	}
	s.next++
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	switch {
	case step.Func != nil:
		return step.Func(ctx, messages)
	case step.Err != nil:
		return model.Message{}, step.Err
	case step.Reply.Role == "":
		return model.TextMessage(model.RoleAssistant, ""), nil
	}
	return step.Reply.Clone(), nil
}

// Calls returns the conversations the model was called with.
func (s *Scripted) Calls() [][]model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Tools returns the tool schemas advertised on each call.
func (s *Scripted) Tools() [][]model.ToolSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools
}
