package model_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// ---- NewGameRequest.Validate ----------------------------------------------

func TestNewGameRequest_HappyPath(t *testing.T) {
	assert.NoError(t, model.NewGameRequest{Name: "Aria", Class: "mage"}.Validate())
}

func TestNewGameRequest_NameRequired(t *testing.T) {
	err := model.NewGameRequest{Name: "   "}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestNewGameRequest_NameAtExactMax(t *testing.T) {
	r := model.NewGameRequest{Name: strings.Repeat("é", model.MaxPlayerNameLen)}
	assert.NoError(t, r.Validate(), "limit counts runes, not bytes")
}

func TestNewGameRequest_NameOverMax(t *testing.T) {
	r := model.NewGameRequest{Name: strings.Repeat("x", model.MaxPlayerNameLen+1)}
	require.Error(t, r.Validate())
}

func TestNewGameRequest_RejectsMarkup(t *testing.T) {
	require.Error(t, model.NewGameRequest{Name: "<b>Bob</b>"}.Validate())
}

// ---- StringSet --------------------------------------------------------------

func TestStringSet_MarshalSorted(t *testing.T) {
	s := model.NewStringSet("tavern", "forest", "castle")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["castle","forest","tavern"]`, string(data))
}

func TestStringSet_UnmarshalDedupes(t *testing.T) {
	var s model.StringSet
	require.NoError(t, json.Unmarshal([]byte(`["a","b","a"]`), &s))
	assert.Len(t, s, 2)
	assert.True(t, s.Has("a"))
}

// ---- Clone ------------------------------------------------------------------

func TestPlayerState_CloneIsDeep(t *testing.T) {
	orig := model.PlayerState{
		Inventory:            []model.Item{{Name: "Torch", Quantity: 1}},
		Stats:                map[string]int{"strength": 10},
		VisitedLocations:     model.NewStringSet("Village Square"),
		UnlockedAchievements: model.NewStringSet(),
	}
	cp := orig.Clone()
	cp.Inventory[0].Quantity = 5
	cp.Stats["strength"] = 1
	cp.VisitedLocations["Dark Forest"] = struct{}{}

	assert.Equal(t, 1, orig.Inventory[0].Quantity)
	assert.Equal(t, 10, orig.Stats["strength"])
	assert.False(t, orig.VisitedLocations.Has("Dark Forest"))
}

func TestMessage_CloneCopiesArguments(t *testing.T) {
	m := model.Message{
		Role:      model.RoleAssistant,
		ToolCalls: []model.ToolCallRequest{{ID: "c1", Name: "roll_dice", Arguments: map[string]any{"difficulty": 10}}},
	}
	cp := m.Clone()
	cp.ToolCalls[0].Arguments["difficulty"] = 30
	assert.Equal(t, 10, m.ToolCalls[0].Arguments["difficulty"])
}

func TestMessage_Text(t *testing.T) {
	assert.Equal(t, "", model.Message{Role: model.RoleAssistant}.Text())
	assert.Equal(t, "hi", model.TextMessage(model.RoleUser, "hi").Text())
}

func TestValidItemType(t *testing.T) {
	assert.True(t, model.ValidItemType(model.ItemPotion))
	assert.False(t, model.ValidItemType("spaceship"))
}
