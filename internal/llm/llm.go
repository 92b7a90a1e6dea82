// Package llm adapts language-model backends to the single capability the
// orchestrator needs: given a conversation and the advertised tools, return
// the next assistant message.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// ErrEmptyResponse is returned when a backend produces no usable candidate.
var ErrEmptyResponse = errors.New("llm: empty response")

// Model produces the next assistant turn. Implementations must honor ctx
// cancellation and must be safe for concurrent use.
type Model interface {
	Respond(ctx context.Context, messages []model.Message, tools []model.ToolSchema) (model.Message, error)
	// Name identifies the backend and model for health output and logs.
	Name() string
}

// encodeArguments renders tool-call arguments as a JSON object string.
func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// decodeArguments parses a JSON object string. Malformed input yields an
// empty map; the tool then fails its own argument checks.
func decodeArguments(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}
