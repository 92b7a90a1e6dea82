package game

import "github.com/ashita-ai/wyrmgate/internal/model"

// Result is the closed set of tool outcomes the reducer understands. Each
// variant carries only what is needed to compute a state delta.
type Result interface {
	// Type is the event type recorded when the result is applied.
	Type() string
	isResult()
}

// Event types for results and reducer side effects.
const (
	EventLocation     = "location"
	EventItem         = "item"
	EventHealth       = "health"
	EventGold         = "gold"
	EventExperience   = "experience"
	EventDiceCheck    = "dice_check"
	EventNPC          = "npc"
	EventCombatWin    = "combat_win"
	EventCreatureInfo = "creature_info"
	EventLevelUp      = "level_up"
	EventAchievement  = "achievement"
)

// LocationResult moves the player. Canonical reports whether the location
// matched the world map; free-text locations are kept verbatim.
type LocationResult struct {
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
	Canonical   bool   `json:"canonical"`
}

// ItemAction distinguishes inventory additions from removals.
type ItemAction string

const (
	ItemAdd    ItemAction = "add"
	ItemRemove ItemAction = "remove"
)

// ItemResult adds an item or removes by name.
type ItemResult struct {
	Action ItemAction `json:"action"`
	Item   model.Item `json:"item"`
}

// HealthDelta changes current health.
type HealthDelta struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// GoldDelta changes the purse.
type GoldDelta struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// ExperienceDelta awards experience.
type ExperienceDelta struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// DiceCheckResult is a resolved d20 skill check. Natural is the raw die.
type DiceCheckResult struct {
	Skill      string `json:"skill"`
	Natural    int    `json:"natural"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
	Difficulty int    `json:"difficulty"`
	Success    bool   `json:"success"`
}

// Critical reports a natural 20.
func (r DiceCheckResult) Critical() bool { return r.Natural == 20 }

// NpcResult is a generated character. Secret is for the model only and is
// stripped from the client view.
type NpcResult struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Mood       string `json:"mood"`
	Appearance string `json:"appearance"`
	Secret     string `json:"secret"`
}

// CombatWinResult records a defeated creature.
type CombatWinResult struct {
	Creature string `json:"creature"`
	Tier     int    `json:"tier"`
}

// CreatureInfoResult is a read-only bestiary lookup.
type CreatureInfoResult struct {
	Query    string    `json:"query"`
	Known    bool      `json:"known"`
	Creature *Creature `json:"creature,omitempty"`
}

func (LocationResult) Type() string     { return EventLocation }
func (ItemResult) Type() string         { return EventItem }
func (HealthDelta) Type() string        { return EventHealth }
func (GoldDelta) Type() string          { return EventGold }
func (ExperienceDelta) Type() string    { return EventExperience }
func (DiceCheckResult) Type() string    { return EventDiceCheck }
func (NpcResult) Type() string          { return EventNPC }
func (CombatWinResult) Type() string    { return EventCombatWin }
func (CreatureInfoResult) Type() string { return EventCreatureInfo }

func (LocationResult) isResult()     {}
func (ItemResult) isResult()         {}
func (HealthDelta) isResult()        {}
func (GoldDelta) isResult()          {}
func (ExperienceDelta) isResult()    {}
func (DiceCheckResult) isResult()    {}
func (NpcResult) isResult()          {}
func (CombatWinResult) isResult()    {}
func (CreatureInfoResult) isResult() {}
