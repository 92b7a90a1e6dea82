// Package mcp implements the Model Context Protocol server for Wyrmgate.
//
// The MCP server exposes the read-only game tools, the static world
// reference data and the caller's character sheet, so MCP-compatible agents
// can consult the same world the narrator plays in without being able to
// change player state.
package mcp

import (
	"context"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/tools"
)

// StateReader loads the caller's player state.
type StateReader interface {
	LoadOrCreate(ctx context.Context, userID string) (model.PlayerState, error)
}

// Server wraps the MCP server with the game catalog.
type Server struct {
	mcpServer *mcpserver.MCPServer
	catalog   *tools.Catalog
	states    StateReader
	logger    *slog.Logger
}

// New creates and configures a new MCP server. Only the read-only subset of
// catalog is exposed. states may be nil, which hides the character sheet.
func New(catalog *tools.Catalog, states StateReader, logger *slog.Logger, version string) *Server {
	s := &Server{
		catalog: catalog.ReadOnly(),
		states:  states,
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"wyrmgate",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithInstructions("Wyrmgate world reference. Tools roll dice, invent townsfolk and describe creatures; none of them change a character."),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
