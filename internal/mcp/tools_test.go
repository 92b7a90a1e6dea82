package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/auth"
	"github.com/ashita-ai/wyrmgate/internal/ctxutil"
	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/storage/memory"
	"github.com/ashita-ai/wyrmgate/internal/tools"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(tools.NewCatalog(tools.NewFixedRoller(0)), store, logger, "test"), store
}

func userCtx(userID string) context.Context {
	claims := &auth.Claims{}
	claims.Subject = userID
	return ctxutil.WithClaims(context.Background(), claims)
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := s.handleTool(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected TextContent")
	return tc.Text
}

func TestServer_OnlyReadOnlyTools(t *testing.T) {
	s, _ := newTestServer(t)
	assert.ElementsMatch(t, tools.ReadOnlyNames, s.catalog.Names())
	for _, def := range s.catalog.Definitions() {
		require.NotNil(t, def.Annotations.ReadOnlyHint, def.Name)
		assert.True(t, *def.Annotations.ReadOnlyHint, def.Name)
	}
}

func TestHandleTool_RollDice(t *testing.T) {
	s, _ := newTestServer(t)
	r := callTool(t, s, tools.RollDice, map[string]any{"skill": "dexterity", "difficulty": 5})
	assert.False(t, r.IsError)

	var out struct {
		Type   string               `json:"type"`
		Result game.DiceCheckResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, r)), &out))
	assert.Equal(t, game.EventDiceCheck, out.Type)
	assert.Equal(t, "dexterity", out.Result.Skill)
	assert.Equal(t, 1, out.Result.Natural, "fixed roller yields a natural 1")
	assert.False(t, out.Result.Success)
}

func TestHandleTool_NpcSecretNeverLeaves(t *testing.T) {
	s, _ := newTestServer(t)

	raw, err := tools.NewCatalog(tools.NewFixedRoller(0)).Dispatch(context.Background(), tools.GenerateNPC, nil)
	require.NoError(t, err)
	secret := raw.(game.NpcResult).Secret
	require.NotEmpty(t, secret)

	text := resultText(t, callTool(t, s, tools.GenerateNPC, map[string]any{"role": "blacksmith"}))
	assert.NotContains(t, text, secret)
	assert.NotContains(t, text, `"secret"`)
	assert.Contains(t, text, "blacksmith")
}

func TestHandleTool_MutatingToolIsUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	r := callTool(t, s, tools.ModifyGold, map[string]any{"amount": 500})
	assert.True(t, r.IsError)
	assert.Contains(t, resultText(t, r), "unknown tool")
}

func TestHandleTool_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t)
	r := callTool(t, s, tools.LookupCreature, map[string]any{})
	assert.True(t, r.IsError)
	assert.Contains(t, resultText(t, r), "name is required")
}

func TestHandleTool_CancelledContext(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := mcplib.CallToolRequest{}
	req.Params.Name = tools.RollDice
	_, err := s.handleTool(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}
