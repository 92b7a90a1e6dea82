package mcp

import (
	"context"
	"encoding/json"
	"errors"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/tools"
)

func (s *Server) registerTools() {
	for _, def := range s.catalog.Definitions() {
		s.mcpServer.AddTool(def, s.handleTool)
	}
}

// handleTool dispatches a call to the catalog. Results go out as their
// client-safe view, so NPC secrets never leave the server.
func (s *Server) handleTool(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.Params.Name
	res, err := s.catalog.Dispatch(ctx, name, request.GetArguments())
	if err != nil {
		if errors.Is(err, tools.ErrNotFound) {
			return mcplib.NewToolResultError("unknown tool: " + name), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("mcp: tool failed", "tool", name, "error", err)
		return mcplib.NewToolResultError(err.Error()), nil
	}

	data, err := json.Marshal(struct {
		Type   string `json:"type"`
		Result any    `json:"result"`
	}{res.Type(), game.View(res)})
	if err != nil {
		return mcplib.NewToolResultError("failed to encode result"), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
