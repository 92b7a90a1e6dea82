// Package game holds the deterministic game-state engine: static reference
// data, the tool result variants, the reducer that folds results into a
// PlayerState, and the achievement sweep.
package game

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// Player defaults.
const (
	StartingLocation = "Village Square"
	StartingHealth   = 100
	StartingGold     = 10
	DefaultName      = "Adventurer"
	DefaultClass     = "warrior"

	// LowHealthThreshold is the health below which a combat win counts as a
	// narrow escape.
	LowHealthThreshold = 20

	// XPPerLevel scales the experience needed to leave a level: leaving level
	// n costs n*XPPerLevel.
	XPPerLevel = 100

	// HealthPerLevel is added to max health on every level gained.
	HealthPerLevel = 10
)

// Location is a canonical world-map entry.
type Location struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// Locations is the canonical world map.
var Locations = []Location{
	{Name: "Village Square", Description: "A bustling square ringed by timber houses and a moss-covered well.", Emoji: "🏘️"},
	{Name: "Rusty Tankard Tavern", Description: "A smoky tavern where rumors cost a copper and ale costs two.", Emoji: "🍺"},
	{Name: "Dark Forest", Description: "Old trees crowd the path and something always watches.", Emoji: "🌲"},
	{Name: "Crystal Caves", Description: "Glittering caverns humming with faint magic.", Emoji: "💎"},
	{Name: "Ancient Ruins", Description: "Broken columns of a forgotten empire, half swallowed by vines.", Emoji: "🏛️"},
	{Name: "Mountain Pass", Description: "A wind-scoured trail above the clouds.", Emoji: "🏔️"},
	{Name: "Dragon's Lair", Description: "A scorched cavern heaped with gold and bones.", Emoji: "🐉"},
}

// Creature is a bestiary entry. Tier runs from 1 (nuisance) to TopTier.
type Creature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Tier        int    `json:"tier"`
	Health      int    `json:"health"`
	Attack      int    `json:"attack"`
}

// TopTier is the tier of the most dangerous creature in the bestiary.
const TopTier = 4

// Bestiary is the built-in creature catalog.
var Bestiary = []Creature{
	{Name: "Giant Rat", Description: "A rat the size of a dog, all teeth and appetite.", Emoji: "🐀", Tier: 1, Health: 8, Attack: 2},
	{Name: "Goblin", Description: "Small, cunning and never alone for long.", Emoji: "👺", Tier: 1, Health: 12, Attack: 3},
	{Name: "Wolf", Description: "A grey hunter of the Dark Forest.", Emoji: "🐺", Tier: 1, Health: 15, Attack: 4},
	{Name: "Skeleton Warrior", Description: "Bones bound by old magic, still loyal to a dead king.", Emoji: "💀", Tier: 2, Health: 25, Attack: 6},
	{Name: "Orc Brute", Description: "A scarred orc who settles every argument with an axe.", Emoji: "👹", Tier: 2, Health: 35, Attack: 8},
	{Name: "Forest Troll", Description: "Regenerates unless burned. Smells of wet moss.", Emoji: "🧌", Tier: 3, Health: 60, Attack: 12},
	{Name: "Shadow Wraith", Description: "A cold whisper that drains the warmth from the living.", Emoji: "👻", Tier: 3, Health: 45, Attack: 14},
	{Name: "Ancient Dragon", Description: "The oldest wyrm in the mountains, hoarder of kingdoms.", Emoji: "🐉", Tier: TopTier, Health: 250, Attack: 30},
}

// Achievement IDs.
const (
	AchFirstVictory   = "first_victory"
	AchSurvivor       = "survivor"
	AchDragonSlayer   = "dragon_slayer"
	AchCriticalHit    = "critical_hit"
	AchDiplomat       = "diplomat"
	AchTreasureHunter = "treasure_hunter"
	AchWealthy        = "wealthy"
	AchExplorer       = "explorer"
	AchCartographer   = "cartographer"
	AchSeasoned       = "seasoned"
	AchLegend         = "legend"
	AchLuckyStreak    = "lucky_streak"
	AchHoarder        = "hoarder"
)

// Achievements is the static achievement catalog in display order.
var Achievements = []model.Achievement{
	{ID: AchFirstVictory, Title: "First Blood", Description: "Win your first fight.", Emoji: "⚔️", Category: "combat"},
	{ID: AchSurvivor, Title: "Survivor", Description: "Win a fight with less than 20 health left.", Emoji: "❤️‍🩹", Category: "combat"},
	{ID: AchDragonSlayer, Title: "Dragon Slayer", Description: "Defeat the Ancient Dragon.", Emoji: "🐉", Category: "combat"},
	{ID: AchCriticalHit, Title: "Natural Twenty", Description: "Roll a natural 20.", Emoji: "🎯", Category: "luck"},
	{ID: AchLuckyStreak, Title: "Lucky Streak", Description: "Succeed on five checks in a row.", Emoji: "🍀", Category: "luck"},
	{ID: AchDiplomat, Title: "Silver Tongue", Description: "Pass a charisma check.", Emoji: "🗣️", Category: "social"},
	{ID: AchTreasureHunter, Title: "Treasure Hunter", Description: "Hold 100 gold.", Emoji: "💰", Category: "wealth"},
	{ID: AchWealthy, Title: "Merchant Prince", Description: "Hold 1000 gold.", Emoji: "👑", Category: "wealth"},
	{ID: AchHoarder, Title: "Hoarder", Description: "Carry 10 different items.", Emoji: "🎒", Category: "wealth"},
	{ID: AchExplorer, Title: "Explorer", Description: "Visit 5 different locations.", Emoji: "🧭", Category: "exploration"},
	{ID: AchCartographer, Title: "Cartographer", Description: "Visit every location on the map.", Emoji: "🗺️", Category: "exploration"},
	{ID: AchSeasoned, Title: "Seasoned", Description: "Reach level 5.", Emoji: "⭐", Category: "progress"},
	{ID: AchLegend, Title: "Legend", Description: "Reach level 10.", Emoji: "🌟", Category: "progress"},
}

// Class is a playable character class.
type Class struct {
	Name      string         `json:"name"`
	Stats     map[string]int `json:"stats"`
	Inventory []model.Item   `json:"inventory"`
}

// Skills usable in dice checks. Each maps to the stat of the same name.
var Skills = []string{"strength", "dexterity", "intelligence", "wisdom", "charisma", "constitution"}

// Classes is the class table keyed by lowercase name.
var Classes = map[string]Class{
	"warrior": {
		Name:  "warrior",
		Stats: map[string]int{"strength": 16, "dexterity": 12, "intelligence": 8, "wisdom": 10, "charisma": 10, "constitution": 15},
		Inventory: []model.Item{
			{Name: "Iron Sword", Description: "Notched but dependable.", Emoji: "🗡️", Type: model.ItemWeapon, Quantity: 1},
			{Name: "Leather Armor", Description: "Smells of old campaigns.", Emoji: "🦺", Type: model.ItemArmor, Quantity: 1},
		},
	},
	"mage": {
		Name:  "mage",
		Stats: map[string]int{"strength": 8, "dexterity": 12, "intelligence": 17, "wisdom": 14, "charisma": 11, "constitution": 9},
		Inventory: []model.Item{
			{Name: "Oak Staff", Description: "Warm to the touch.", Emoji: "🪄", Type: model.ItemWeapon, Quantity: 1},
			{Name: "Mana Potion", Description: "Tastes of thunderstorms.", Emoji: "🧪", Type: model.ItemPotion, Quantity: 2},
		},
	},
	"rogue": {
		Name:  "rogue",
		Stats: map[string]int{"strength": 10, "dexterity": 17, "intelligence": 12, "wisdom": 10, "charisma": 13, "constitution": 11},
		Inventory: []model.Item{
			{Name: "Twin Daggers", Description: "Balanced for throwing.", Emoji: "🔪", Type: model.ItemWeapon, Quantity: 1},
			{Name: "Lockpicks", Description: "A roll of thin steel picks.", Emoji: "🗝️", Type: model.ItemKey, Quantity: 1},
		},
	},
	"cleric": {
		Name:  "cleric",
		Stats: map[string]int{"strength": 12, "dexterity": 9, "intelligence": 11, "wisdom": 17, "charisma": 14, "constitution": 13},
		Inventory: []model.Item{
			{Name: "Mace", Description: "Blessed at the village shrine.", Emoji: "🔨", Type: model.ItemWeapon, Quantity: 1},
			{Name: "Healing Potion", Description: "Restores a little vigor.", Emoji: "❤️", Type: model.ItemPotion, Quantity: 2},
		},
	},
}

var (
	locationIndex = map[string]string{}
	creatureIndex = map[string]Creature{}
	achievementIx = map[string]model.Achievement{}
)

func init() {
	for _, l := range Locations {
		locationIndex[fold(l.Name)] = l.Name
	}
	for _, c := range Bestiary {
		creatureIndex[fold(c.Name)] = c
	}
	for _, a := range Achievements {
		achievementIx[a.ID] = a
	}
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// CanonicalLocation returns the canonical spelling of name when it matches a
// world-map entry case-insensitively.
func CanonicalLocation(name string) (string, bool) {
	canon, ok := locationIndex[fold(name)]
	return canon, ok
}

// LookupLocation returns the world-map entry for name.
func LookupLocation(name string) (Location, bool) {
	canon, ok := CanonicalLocation(name)
	if !ok {
		return Location{}, false
	}
	for _, l := range Locations {
		if l.Name == canon {
			return l, true
		}
	}
	return Location{}, false
}

// LookupCreature matches name case-insensitively against the bestiary.
func LookupCreature(name string) (Creature, bool) {
	c, ok := creatureIndex[fold(name)]
	return c, ok
}

// LookupAchievement returns the catalog entry for id.
func LookupAchievement(id string) (model.Achievement, bool) {
	a, ok := achievementIx[id]
	return a, ok
}

// LookupClass returns the class for name, case-insensitively.
func LookupClass(name string) (Class, bool) {
	c, ok := Classes[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// NewPlayer builds a fresh level-1 character. An unknown class falls back to
// DefaultClass and an empty name to DefaultName.
func NewPlayer(id, name, class string) model.PlayerState {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	c, ok := LookupClass(class)
	if !ok {
		c = Classes[DefaultClass]
	}
	stats := make(map[string]int, len(c.Stats))
	for k, v := range c.Stats {
		stats[k] = v
	}
	inv := make([]model.Item, len(c.Inventory))
	copy(inv, c.Inventory)

	return model.PlayerState{
		ID:                   id,
		Name:                 name,
		Class:                c.Name,
		Health:               StartingHealth,
		MaxHealth:            StartingHealth,
		Gold:                 StartingGold,
		Level:                1,
		Location:             StartingLocation,
		Inventory:            inv,
		Stats:                stats,
		VisitedLocations:     model.NewStringSet(StartingLocation),
		UnlockedAchievements: model.NewStringSet(),
	}
}

// AchievementStatuses annotates the catalog with the player's progress.
func AchievementStatuses(state model.PlayerState) []model.AchievementStatus {
	out := make([]model.AchievementStatus, len(Achievements))
	for i, a := range Achievements {
		out[i] = model.AchievementStatus{Achievement: a, Unlocked: state.UnlockedAchievements.Has(a.ID)}
	}
	return out
}
