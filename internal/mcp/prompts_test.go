package mcp

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/tools"
)

func promptRequest(name string, args map[string]string) mcplib.GetPromptRequest {
	return mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{Name: name, Arguments: args},
	}
}

func promptText(t *testing.T, result *mcplib.GetPromptResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Messages)
	msg := result.Messages[0]
	assert.Equal(t, mcplib.RoleUser, msg.Role)
	tc, ok := msg.Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")
	return tc.Text
}

func TestEncounterPrompt(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleEncounterPrompt(context.Background(), promptRequest("encounter", map[string]string{"creature": "goblin"}))
	require.NoError(t, err)
	assert.Contains(t, result.Description, "Goblin", "canonical spelling")

	text := promptText(t, result)
	assert.Contains(t, text, tools.LookupCreature)
	assert.Contains(t, text, tools.RollDice)
	assert.Contains(t, text, "difficulty of 12", "tier 1 difficulty")
}

func TestEncounterPrompt_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.handleEncounterPrompt(context.Background(), promptRequest("encounter", nil))
	assert.ErrorContains(t, err, "required")

	_, err = s.handleEncounterPrompt(context.Background(), promptRequest("encounter", map[string]string{"creature": "Beholder"}))
	assert.ErrorContains(t, err, "unknown creature")
}

func TestTownsfolkPrompt(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleTownsfolkPrompt(context.Background(), promptRequest("townsfolk", nil))
	require.NoError(t, err)
	assert.Contains(t, promptText(t, result), "Village Square")

	result, err = s.handleTownsfolkPrompt(context.Background(), promptRequest("townsfolk", map[string]string{"location": "rusty tankard tavern"}))
	require.NoError(t, err)
	assert.Contains(t, promptText(t, result), "Rusty Tankard Tavern")

	_, err = s.handleTownsfolkPrompt(context.Background(), promptRequest("townsfolk", map[string]string{"location": "Atlantis"}))
	assert.ErrorContains(t, err, "unknown location")
}
