package tools

import (
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
)

// Argument limits.
const (
	maxLocationRunes    = 80
	maxItemNameRunes    = 60
	maxItemDescRunes    = 200
	maxEmojiRunes       = 8
	maxReasonRunes      = 120
	maxRoleRunes        = 60
	maxCreatureRunes    = 60
	maxQuantity         = 99
	maxHealthDelta      = 50
	maxGoldDelta        = 500
	maxExperienceAward  = 1000
	minDifficulty       = 1
	maxDifficulty       = 30
	defaultDifficulty   = 10
	maxModifier         = 10
	defaultItemEmoji    = "📦"
	defaultNpcRole      = "villager"
	defaultSkill        = "strength"
	defaultNpcMood      = "neutral"
	unknownCreatureTier = 1
)

var itemTypes = []string{
	string(model.ItemWeapon), string(model.ItemArmor), string(model.ItemPotion),
	string(model.ItemKey), string(model.ItemMisc),
}

func builtins() []*Tool {
	return []*Tool{
		{
			Def: mcplib.NewTool(MoveToLocation,
				mcplib.WithDescription("Move the player to a location. Prefer the known world locations: Village Square, Rusty Tankard Tavern, Dark Forest, Crystal Caves, Ancient Ruins, Mountain Pass, Dragon's Lair."),
				mcplib.WithString("location",
					mcplib.Description("Destination name"),
					mcplib.Required(),
					mcplib.MaxLength(maxLocationRunes),
				),
			),
			run: moveToLocation,
		},
		{
			Def: mcplib.NewTool(AddItem,
				mcplib.WithDescription("Give the player an item."),
				mcplib.WithString("name", mcplib.Description("Item name"), mcplib.Required(), mcplib.MaxLength(maxItemNameRunes)),
				mcplib.WithString("description", mcplib.Description("Short description"), mcplib.MaxLength(maxItemDescRunes)),
				mcplib.WithString("emoji", mcplib.Description("A single emoji for the item")),
				mcplib.WithString("type", mcplib.Description("Item category"), mcplib.Enum(itemTypes...)),
				mcplib.WithNumber("quantity", mcplib.Description("How many"), mcplib.Min(1), mcplib.Max(maxQuantity), mcplib.DefaultNumber(1)),
			),
			run: addItem,
		},
		{
			Def: mcplib.NewTool(RemoveItem,
				mcplib.WithDescription("Remove an item from the player's inventory by name."),
				mcplib.WithString("name", mcplib.Description("Item name"), mcplib.Required(), mcplib.MaxLength(maxItemNameRunes)),
				mcplib.WithNumber("quantity", mcplib.Description("How many to remove"), mcplib.Min(1), mcplib.Max(maxQuantity), mcplib.DefaultNumber(1)),
			),
			run: removeItem,
		},
		{
			Def: mcplib.NewTool(ModifyHealth,
				mcplib.WithDescription("Damage (negative) or heal (positive) the player."),
				mcplib.WithNumber("amount", mcplib.Description("Health change"), mcplib.Required(), mcplib.Min(-maxHealthDelta), mcplib.Max(maxHealthDelta)),
				mcplib.WithString("reason", mcplib.Description("What caused the change"), mcplib.MaxLength(maxReasonRunes)),
			),
			run: modifyHealth,
		},
		{
			Def: mcplib.NewTool(ModifyGold,
				mcplib.WithDescription("Add (positive) or spend (negative) gold."),
				mcplib.WithNumber("amount", mcplib.Description("Gold change"), mcplib.Required(), mcplib.Min(-maxGoldDelta), mcplib.Max(maxGoldDelta)),
				mcplib.WithString("reason", mcplib.Description("Why the purse changed"), mcplib.MaxLength(maxReasonRunes)),
			),
			run: modifyGold,
		},
		{
			Def: mcplib.NewTool(AwardExperience,
				mcplib.WithDescription("Award experience points. Leveling up is automatic."),
				mcplib.WithNumber("amount", mcplib.Description("Experience points"), mcplib.Required(), mcplib.Min(0), mcplib.Max(maxExperienceAward)),
				mcplib.WithString("reason", mcplib.Description("What was accomplished"), mcplib.MaxLength(maxReasonRunes)),
			),
			run: awardExperience,
		},
		{
			Def: mcplib.NewTool(RollDice,
				mcplib.WithDescription("Roll a d20 skill check against a difficulty. A natural 20 always succeeds and a natural 1 always fails."),
				mcplib.WithReadOnlyHintAnnotation(true),
				mcplib.WithString("skill", mcplib.Description("Skill being tested"), mcplib.Enum(game.Skills...)),
				mcplib.WithNumber("difficulty", mcplib.Description("Target number"), mcplib.Min(minDifficulty), mcplib.Max(maxDifficulty), mcplib.DefaultNumber(defaultDifficulty)),
				mcplib.WithNumber("modifier", mcplib.Description("Bonus or penalty added to the roll"), mcplib.Min(-maxModifier), mcplib.Max(maxModifier), mcplib.DefaultNumber(0)),
			),
			ReadOnly: true,
			run:      rollDice,
		},
		{
			Def: mcplib.NewTool(GenerateNPC,
				mcplib.WithDescription("Create a non-player character with a name, appearance and a hidden secret only you know."),
				mcplib.WithReadOnlyHintAnnotation(true),
				mcplib.WithString("role", mcplib.Description("The character's job or place in the world"), mcplib.MaxLength(maxRoleRunes)),
				mcplib.WithString("mood", mcplib.Description("Attitude toward the player"), mcplib.Enum(npcMoods...)),
			),
			ReadOnly: true,
			run:      generateNPC,
		},
		{
			Def: mcplib.NewTool(DefeatCreature,
				mcplib.WithDescription("Record that the player defeated a creature in combat."),
				mcplib.WithString("creature", mcplib.Description("Creature name, ideally from the bestiary"), mcplib.Required(), mcplib.MaxLength(maxCreatureRunes)),
			),
			run: defeatCreature,
		},
		{
			Def: mcplib.NewTool(LookupCreature,
				mcplib.WithDescription("Look up a creature in the bestiary."),
				mcplib.WithReadOnlyHintAnnotation(true),
				mcplib.WithIdempotentHintAnnotation(true),
				mcplib.WithString("name", mcplib.Description("Creature name"), mcplib.Required(), mcplib.MaxLength(maxCreatureRunes)),
			),
			ReadOnly: true,
			run:      lookupCreature,
		},
	}
}

func required(args Args, key string, maxRunes int) (string, error) {
	v := args.String(key, maxRunes)
	if v == "" {
		return "", fmt.Errorf("tools: %s is required", key)
	}
	return v, nil
}

func moveToLocation(args Args, _ Roller) (game.Result, error) {
	loc, err := required(args, "location", maxLocationRunes)
	if err != nil {
		return nil, err
	}
	res := game.LocationResult{Location: loc}
	if l, ok := game.LookupLocation(loc); ok {
		res.Location = l.Name
		res.Description = l.Description
		res.Canonical = true
	}
	return res, nil
}

func addItem(args Args, _ Roller) (game.Result, error) {
	name, err := required(args, "name", maxItemNameRunes)
	if err != nil {
		return nil, err
	}
	emoji := args.String("emoji", maxEmojiRunes)
	if emoji == "" {
		emoji = defaultItemEmoji
	}
	return game.ItemResult{
		Action: game.ItemAdd,
		Item: model.Item{
			Name:        name,
			Description: args.String("description", maxItemDescRunes),
			Emoji:       emoji,
			Type:        model.ItemType(args.Enum("type", itemTypes, string(model.ItemMisc))),
			Quantity:    args.Int("quantity", 1, 1, maxQuantity),
		},
	}, nil
}

func removeItem(args Args, _ Roller) (game.Result, error) {
	name, err := required(args, "name", maxItemNameRunes)
	if err != nil {
		return nil, err
	}
	return game.ItemResult{
		Action: game.ItemRemove,
		Item:   model.Item{Name: name, Quantity: args.Int("quantity", 1, 1, maxQuantity)},
	}, nil
}

func modifyHealth(args Args, _ Roller) (game.Result, error) {
	return game.HealthDelta{
		Amount: args.Int("amount", 0, -maxHealthDelta, maxHealthDelta),
		Reason: args.String("reason", maxReasonRunes),
	}, nil
}

func modifyGold(args Args, _ Roller) (game.Result, error) {
	return game.GoldDelta{
		Amount: args.Int("amount", 0, -maxGoldDelta, maxGoldDelta),
		Reason: args.String("reason", maxReasonRunes),
	}, nil
}

func awardExperience(args Args, _ Roller) (game.Result, error) {
	return game.ExperienceDelta{
		Amount: args.Int("amount", 0, 0, maxExperienceAward),
		Reason: args.String("reason", maxReasonRunes),
	}, nil
}

func rollDice(args Args, r Roller) (game.Result, error) {
	res := game.DiceCheckResult{
		Skill:      args.Enum("skill", game.Skills, defaultSkill),
		Natural:    r.IntN(20) + 1,
		Modifier:   args.Int("modifier", 0, -maxModifier, maxModifier),
		Difficulty: args.Int("difficulty", defaultDifficulty, minDifficulty, maxDifficulty),
	}
	res.Total = res.Natural + res.Modifier
	switch res.Natural {
	case 20:
		res.Success = true
	case 1:
		res.Success = false
	default:
		res.Success = res.Total >= res.Difficulty
	}
	return res, nil
}

func generateNPC(args Args, r Roller) (game.Result, error) {
	role := args.String("role", maxRoleRunes)
	if role == "" {
		role = defaultNpcRole
	}
	return game.NpcResult{
		Name:       pick(r, npcFirstNames) + " " + pick(r, npcLastNames),
		Role:       role,
		Mood:       args.Enum("mood", npcMoods, defaultNpcMood),
		Appearance: pick(r, npcAppearances),
		Secret:     pick(r, npcSecrets),
	}, nil
}

func defeatCreature(args Args, _ Roller) (game.Result, error) {
	name, err := required(args, "creature", maxCreatureRunes)
	if err != nil {
		return nil, err
	}
	if c, ok := game.LookupCreature(name); ok {
		return game.CombatWinResult{Creature: c.Name, Tier: c.Tier}, nil
	}
	return game.CombatWinResult{Creature: name, Tier: unknownCreatureTier}, nil
}

func lookupCreature(args Args, _ Roller) (game.Result, error) {
	name, err := required(args, "name", maxCreatureRunes)
	if err != nil {
		return nil, err
	}
	c, ok := game.LookupCreature(name)
	if !ok {
		return game.CreatureInfoResult{Query: name}, nil
	}
	return game.CreatureInfoResult{Query: name, Known: true, Creature: &c}, nil
}
