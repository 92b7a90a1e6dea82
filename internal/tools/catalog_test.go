package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
)

func dispatch(t *testing.T, c *Catalog, name string, args map[string]any) game.Result {
	t.Helper()
	res, err := c.Dispatch(context.Background(), name, args)
	require.NoError(t, err)
	return res
}

func TestCatalog_NamesAndList(t *testing.T) {
	c := NewCatalog(nil)
	names := c.Names()
	assert.Equal(t, []string{
		MoveToLocation, AddItem, RemoveItem, ModifyHealth, ModifyGold,
		AwardExperience, RollDice, GenerateNPC, DefeatCreature, LookupCreature,
	}, names)

	schemas := c.List()
	require.Len(t, schemas, len(names))
	for _, s := range schemas {
		assert.NotEmpty(t, s.Description, s.Name)
		assert.Equal(t, "object", s.ParameterSchema["type"], s.Name)
	}
}

func TestCatalog_SchemaRequiredFields(t *testing.T) {
	c := NewCatalog(nil).Subset(MoveToLocation)
	schema := c.List()[0].ParameterSchema
	assert.Equal(t, []any{"location"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "location")
}

func TestCatalog_Subset(t *testing.T) {
	c := NewCatalog(nil)
	sub := c.Subset(LookupCreature, "nope", RollDice)
	assert.Equal(t, []string{RollDice, LookupCreature}, sub.Names(), "catalog order is kept")
	assert.False(t, sub.Has(AddItem))

	_, err := sub.Dispatch(context.Background(), AddItem, map[string]any{"name": "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCatalog_ReadOnly(t *testing.T) {
	ro := NewCatalog(nil).ReadOnly()
	assert.ElementsMatch(t, ReadOnlyNames, ro.Names())
}

func TestDispatch_UnknownTool(t *testing.T) {
	_, err := NewCatalog(nil).Dispatch(context.Background(), "drop_tables", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDispatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCatalog(nil).Dispatch(ctx, RollDice, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatch_RecoversPanic(t *testing.T) {
	boom := &Tool{
		Def: mcplib.NewTool("boom"),
		run: func(Args, Roller) (game.Result, error) { panic("kaboom") },
	}
	c := newCatalog(append(builtins(), boom), DefaultRoller())

	_, err := c.Dispatch(context.Background(), "boom", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// Other tools keep working after a panic.
	res := dispatch(t, c, ModifyGold, map[string]any{"amount": 5.0})
	assert.Equal(t, game.GoldDelta{Amount: 5}, res)
}

func TestMoveToLocation(t *testing.T) {
	c := NewCatalog(nil)

	res := dispatch(t, c, MoveToLocation, map[string]any{"location": "crystal caves"}).(game.LocationResult)
	assert.Equal(t, "Crystal Caves", res.Location)
	assert.True(t, res.Canonical)
	assert.NotEmpty(t, res.Description)

	res = dispatch(t, c, MoveToLocation, map[string]any{"location": strings.Repeat("z", 200)}).(game.LocationResult)
	assert.False(t, res.Canonical)
	assert.Equal(t, maxLocationRunes, utf8.RuneCountInString(res.Location))

	_, err := c.Dispatch(context.Background(), MoveToLocation, map[string]any{"location": "   "})
	assert.Error(t, err)
}

func TestAddItem_Hygiene(t *testing.T) {
	res := dispatch(t, NewCatalog(nil), AddItem, map[string]any{
		"name":     "Lantern",
		"type":     "SPACESHIP",
		"quantity": 5000.0,
	}).(game.ItemResult)

	assert.Equal(t, game.ItemAdd, res.Action)
	assert.Equal(t, model.ItemMisc, res.Item.Type)
	assert.Equal(t, maxQuantity, res.Item.Quantity)
	assert.Equal(t, defaultItemEmoji, res.Item.Emoji)

	res = dispatch(t, NewCatalog(nil), AddItem, map[string]any{"name": "Elixir", "type": "Potion", "quantity": -3}).(game.ItemResult)
	assert.Equal(t, model.ItemPotion, res.Item.Type)
	assert.Equal(t, 1, res.Item.Quantity)
}

func TestDispatch_StripsMarkupFromFreeText(t *testing.T) {
	c := NewCatalog(NewFixedRoller(0))
	unsafe := func(t *testing.T, s string) {
		t.Helper()
		lower := strings.ToLower(s)
		for _, bad := range []string{"<script", "<iframe", "onerror", "javascript:"} {
			assert.NotContains(t, lower, bad)
		}
	}

	item := dispatch(t, c, AddItem, map[string]any{
		"name":        `Lamp<img src=x onerror="alert(1)">`,
		"description": "<script>alert(1)</script>",
	}).(game.ItemResult)
	unsafe(t, item.Item.Name)
	unsafe(t, item.Item.Description)
	assert.Contains(t, item.Item.Name, "Lamp")

	loc := dispatch(t, c, MoveToLocation, map[string]any{"location": "javascript:alert(1) Sunken Crypt"}).(game.LocationResult)
	unsafe(t, loc.Location)
	assert.Contains(t, loc.Location, "Sunken Crypt")

	npc := dispatch(t, c, GenerateNPC, map[string]any{"role": `<iframe src="x"></iframe>smith`}).(game.NpcResult)
	unsafe(t, npc.Role)

	gold := dispatch(t, c, ModifyGold, map[string]any{"amount": 5, "reason": "<SCRIPT>steal()</SCRIPT>"}).(game.GoldDelta)
	unsafe(t, gold.Reason)

	win := dispatch(t, c, DefeatCreature, map[string]any{"creature": "<embed src=x>Goblin King"}).(game.CombatWinResult)
	unsafe(t, win.Creature)
}

func TestRemoveItem(t *testing.T) {
	res := dispatch(t, NewCatalog(nil), RemoveItem, map[string]any{"name": "Torch"}).(game.ItemResult)
	assert.Equal(t, game.ItemRemove, res.Action)
	assert.Equal(t, 1, res.Item.Quantity)
}

func TestDeltaClamps(t *testing.T) {
	c := NewCatalog(nil)
	tests := []struct {
		tool string
		in   any
		want game.Result
	}{
		{ModifyHealth, -900.0, game.HealthDelta{Amount: -maxHealthDelta}},
		{ModifyHealth, 900.0, game.HealthDelta{Amount: maxHealthDelta}},
		{ModifyGold, 1e9, game.GoldDelta{Amount: maxGoldDelta}},
		{ModifyGold, "-42", game.GoldDelta{Amount: -42}},
		{AwardExperience, -10.0, game.ExperienceDelta{Amount: 0}},
		{AwardExperience, 5000.0, game.ExperienceDelta{Amount: maxExperienceAward}},
		{AwardExperience, "lots", game.ExperienceDelta{Amount: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			assert.Equal(t, tt.want, dispatch(t, c, tt.tool, map[string]any{"amount": tt.in}))
		})
	}
}

func TestRollDice(t *testing.T) {
	c := NewCatalog(NewFixedRoller(13))
	res := dispatch(t, c, RollDice, map[string]any{
		"skill":      "Charisma",
		"difficulty": 99.0,
		"modifier":   -40.0,
	}).(game.DiceCheckResult)

	assert.Equal(t, "charisma", res.Skill)
	assert.Equal(t, 14, res.Natural)
	assert.Equal(t, maxDifficulty, res.Difficulty)
	assert.Equal(t, -maxModifier, res.Modifier)
	assert.Equal(t, 4, res.Total)
	assert.False(t, res.Success)
}

func TestRollDice_Defaults(t *testing.T) {
	res := dispatch(t, NewCatalog(NewFixedRoller(9)), RollDice, map[string]any{"skill": "juggling"}).(game.DiceCheckResult)
	assert.Equal(t, defaultSkill, res.Skill)
	assert.Equal(t, defaultDifficulty, res.Difficulty)
	assert.Equal(t, 10, res.Total)
	assert.True(t, res.Success)
}

func TestRollDice_NaturalExtremes(t *testing.T) {
	nat20 := dispatch(t, NewCatalog(NewFixedRoller(19)), RollDice, map[string]any{"difficulty": 30.0, "modifier": -10.0}).(game.DiceCheckResult)
	assert.True(t, nat20.Success)
	assert.True(t, nat20.Critical())

	nat1 := dispatch(t, NewCatalog(NewFixedRoller(0)), RollDice, map[string]any{"difficulty": 1.0, "modifier": 10.0}).(game.DiceCheckResult)
	assert.False(t, nat1.Success)
}

func TestRollDice_RangeWithSeededRoller(t *testing.T) {
	c := NewCatalog(NewSeededRoller(7))
	for range 200 {
		res := dispatch(t, c, RollDice, nil).(game.DiceCheckResult)
		assert.GreaterOrEqual(t, res.Natural, 1)
		assert.LessOrEqual(t, res.Natural, 20)
	}
}

func TestGenerateNPC(t *testing.T) {
	res := dispatch(t, NewCatalog(NewFixedRoller(0)), GenerateNPC, map[string]any{
		"role": strings.Repeat("r", 100),
		"mood": "murderous",
	}).(game.NpcResult)

	assert.Equal(t, "Mira Ashdown", res.Name)
	assert.Equal(t, maxRoleRunes, utf8.RuneCountInString(res.Role))
	assert.Equal(t, defaultNpcMood, res.Mood)
	assert.NotEmpty(t, res.Secret)
}

func TestDefeatCreature(t *testing.T) {
	c := NewCatalog(nil)
	res := dispatch(t, c, DefeatCreature, map[string]any{"creature": "ANCIENT DRAGON"}).(game.CombatWinResult)
	assert.Equal(t, game.CombatWinResult{Creature: "Ancient Dragon", Tier: game.TopTier}, res)

	res = dispatch(t, c, DefeatCreature, map[string]any{"creature": "Mimic"}).(game.CombatWinResult)
	assert.Equal(t, unknownCreatureTier, res.Tier)
}

func TestLookupCreature(t *testing.T) {
	c := NewCatalog(nil)
	res := dispatch(t, c, LookupCreature, map[string]any{"name": "wolf"}).(game.CreatureInfoResult)
	require.True(t, res.Known)
	assert.Equal(t, "Wolf", res.Creature.Name)

	res = dispatch(t, c, LookupCreature, map[string]any{"name": "Unicorn"}).(game.CreatureInfoResult)
	assert.False(t, res.Known)
	assert.Nil(t, res.Creature)
}

func TestArgs_Int(t *testing.T) {
	a := Args{"f": 2.6, "i": 7, "s": " 12 ", "bad": []int{1}}
	assert.Equal(t, 3, a.Int("f", 0, -100, 100))
	assert.Equal(t, 7, a.Int("i", 0, -100, 100))
	assert.Equal(t, 12, a.Int("s", 0, -100, 100))
	assert.Equal(t, 4, a.Int("bad", 4, -100, 100))
	assert.Equal(t, 4, a.Int("missing", 4, -100, 100))
}
