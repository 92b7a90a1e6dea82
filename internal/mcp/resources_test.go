package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
)

func TestParseCreatureURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		want      string
		errSubstr string
	}{
		{name: "simple", uri: "wyrmgate://world/creature/Goblin", want: "Goblin"},
		{name: "percent-encoded space", uri: "wyrmgate://world/creature/Forest%20Troll", want: "Forest Troll"},
		{name: "apostrophe kept", uri: "wyrmgate://world/creature/Dragon's", want: "Dragon's"},
		{name: "empty name", uri: "wyrmgate://world/creature/", errSubstr: "empty creature name"},
		{name: "blank name", uri: "wyrmgate://world/creature/%20", errSubstr: "empty creature name"},
		{name: "extra segment", uri: "wyrmgate://world/creature/Goblin/extra", errSubstr: "invalid creature URI"},
		{name: "wrong prefix", uri: "other://world/creature/Goblin", errSubstr: "invalid creature URI"},
		{name: "bad escape", uri: "wyrmgate://world/creature/%zz", errSubstr: "invalid creature URI"},
		{name: "empty string", uri: "", errSubstr: "invalid creature URI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCreatureURI(tt.uri)
			if tt.errSubstr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func readResource(uri string) mcplib.ReadResourceRequest {
	req := mcplib.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func contentsText(t *testing.T, contents []mcplib.ResourceContents) string {
	t.Helper()
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", tc.MIMEType)
	return tc.Text
}

func TestHandleCreature(t *testing.T) {
	s, _ := newTestServer(t)

	contents, err := s.handleCreature(context.Background(), readResource("wyrmgate://world/creature/forest%20troll"))
	require.NoError(t, err)
	var c game.Creature
	require.NoError(t, json.Unmarshal([]byte(contentsText(t, contents)), &c))
	assert.Equal(t, "Forest Troll", c.Name)

	_, err = s.handleCreature(context.Background(), readResource("wyrmgate://world/creature/Mimic"))
	assert.ErrorContains(t, err, "unknown creature")
}

func TestStaticResources(t *testing.T) {
	s, _ := newTestServer(t)

	contents, err := s.staticResource(uriLocations, game.Locations)(context.Background(), readResource(uriLocations))
	require.NoError(t, err)
	var locs []game.Location
	require.NoError(t, json.Unmarshal([]byte(contentsText(t, contents)), &locs))
	assert.Len(t, locs, len(game.Locations))
}

func TestHandleCharacter(t *testing.T) {
	s, store := newTestServer(t)

	_, err := s.handleCharacter(context.Background(), readResource(uriCharacter))
	assert.ErrorContains(t, err, "authenticated")

	_, err = store.Replace(context.Background(), "alice", game.NewPlayer("alice", "Brynn", "rogue"))
	require.NoError(t, err)

	contents, err := s.handleCharacter(userCtx("alice"), readResource(uriCharacter))
	require.NoError(t, err)
	var st model.PlayerState
	require.NoError(t, json.Unmarshal([]byte(contentsText(t, contents)), &st))
	assert.Equal(t, "Brynn", st.Name)
	assert.Equal(t, "rogue", st.Class)
}
