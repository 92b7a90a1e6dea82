package model

import (
	"encoding/json"
	"slices"
)

// ItemType is the category of an inventory item.
type ItemType string

const (
	ItemWeapon ItemType = "weapon"
	ItemArmor  ItemType = "armor"
	ItemPotion ItemType = "potion"
	ItemKey    ItemType = "key"
	ItemMisc   ItemType = "misc"
)

// ValidItemType reports whether t is one of the known item categories.
func ValidItemType(t ItemType) bool {
	switch t {
	case ItemWeapon, ItemArmor, ItemPotion, ItemKey, ItemMisc:
		return true
	}
	return false
}

// Item is one inventory entry. Entries sharing a name are not merged.
type Item struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Emoji       string   `json:"emoji"`
	Type        ItemType `json:"type"`
	Quantity    int      `json:"quantity"`
}

// StringSet is a set of strings serialized as a sorted JSON array.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Clone copies the set.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// PlayerState is the per-user game state. It is mutated only by the game
// reducer and persisted through a state store after every terminal round.
type PlayerState struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Class                string         `json:"class"`
	Health               int            `json:"health"`
	MaxHealth            int            `json:"max_health"`
	Gold                 int            `json:"gold"`
	Experience           int            `json:"experience"`
	Level                int            `json:"level"`
	Location             string         `json:"location"`
	Inventory            []Item         `json:"inventory"`
	Stats                map[string]int `json:"stats"`
	VisitedLocations     StringSet      `json:"visited_locations"`
	UnlockedAchievements StringSet      `json:"unlocked_achievements"`
	SuccessStreak        int            `json:"success_streak"`
	MaxStreak            int            `json:"max_streak"`
	Version              int64          `json:"version"`
}

// Clone returns a deep copy of the state.
func (p PlayerState) Clone() PlayerState {
	out := p
	if p.Inventory != nil {
		out.Inventory = slices.Clone(p.Inventory)
	}
	if p.Stats != nil {
		out.Stats = make(map[string]int, len(p.Stats))
		for k, v := range p.Stats {
			out.Stats[k] = v
		}
	}
	out.VisitedLocations = p.VisitedLocations.Clone()
	out.UnlockedAchievements = p.UnlockedAchievements.Clone()
	return out
}

// GameEvent is an audit and client-notification record emitted once per
// applied tool result or awarded achievement.
type GameEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Achievement is a static catalog entry. Whether it is unlocked is derived
// from PlayerState.UnlockedAchievements.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Category    string `json:"category"`
}
