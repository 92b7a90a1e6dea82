package game

import (
	"encoding/json"
	"strings"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// Apply folds r into state and returns the new state, the client-safe view
// of r, and the events produced (the result itself, any level-ups and any
// achievements unlocked). The input state is never mutated. A nil result
// passes the state through unchanged.
func Apply(state model.PlayerState, r Result) (model.PlayerState, any, []model.GameEvent) {
	next := state.Clone()
	ensureSets(&next)
	if r == nil {
		return next, nil, nil
	}

	view := View(r)
	events := []model.GameEvent{NewEvent(r.Type(), view)}

	switch v := r.(type) {
	case LocationResult:
		loc := strings.TrimSpace(v.Location)
		if canon, ok := CanonicalLocation(loc); ok {
			loc = canon
		}
		if loc != "" {
			next.Location = loc
			next.VisitedLocations[loc] = struct{}{}
		}

	case ItemResult:
		switch v.Action {
		case ItemAdd:
			next.Inventory = append(next.Inventory, sanitizeItem(v.Item))
		case ItemRemove:
			next.Inventory = removeItem(next.Inventory, v.Item.Name, v.Item.Quantity)
		}

	case HealthDelta:
		next.Health = clamp(next.Health+v.Amount, 0, next.MaxHealth)

	case GoldDelta:
		next.Gold = max(0, next.Gold+v.Amount)

	case ExperienceDelta:
		events = append(events, gainExperience(&next, v.Amount)...)

	case DiceCheckResult:
		if v.Success {
			next.SuccessStreak++
			next.MaxStreak = max(next.MaxStreak, next.SuccessStreak)
		} else {
			next.SuccessStreak = 0
		}
		if v.Critical() {
			events = appendUnlock(events, &next, AchCriticalHit)
		}
		if v.Success && v.Skill == "charisma" {
			events = appendUnlock(events, &next, AchDiplomat)
		}

	case CombatWinResult:
		events = appendUnlock(events, &next, AchFirstVictory)
		if next.Health < LowHealthThreshold {
			events = appendUnlock(events, &next, AchSurvivor)
		}
		if v.Tier >= TopTier {
			events = appendUnlock(events, &next, AchDragonSlayer)
		}

	case NpcResult, CreatureInfoResult:
		// Informational only.
	}

	next, swept := Sweep(next)
	return next, view, append(events, swept...)
}

func ensureSets(s *model.PlayerState) {
	if s.VisitedLocations == nil {
		s.VisitedLocations = model.NewStringSet()
	}
	if s.UnlockedAchievements == nil {
		s.UnlockedAchievements = model.NewStringSet()
	}
	if s.Stats == nil {
		s.Stats = map[string]int{}
	}
}

func sanitizeItem(it model.Item) model.Item {
	it.Name = strings.TrimSpace(it.Name)
	if it.Quantity < 1 {
		it.Quantity = 1
	}
	if !model.ValidItemType(it.Type) {
		it.Type = model.ItemMisc
	}
	return it
}

// removeItem decrements the first entry whose name matches case-insensitively
// and drops it at zero. No match is a no-op.
func removeItem(inv []model.Item, name string, qty int) []model.Item {
	if qty < 1 {
		qty = 1
	}
	name = strings.TrimSpace(name)
	for i := range inv {
		if !strings.EqualFold(inv[i].Name, name) {
			continue
		}
		inv[i].Quantity -= qty
		if inv[i].Quantity <= 0 {
			return append(inv[:i], inv[i+1:]...)
		}
		return inv
	}
	return inv
}

// gainExperience adds xp and levels up while the pool covers the current
// level's cost. Each level raises max health and fully heals.
func gainExperience(s *model.PlayerState, amount int) []model.GameEvent {
	s.Experience = max(0, s.Experience+amount)
	if s.Level < 1 {
		s.Level = 1
	}
	var events []model.GameEvent
	for s.Experience >= s.Level*XPPerLevel {
		s.Experience -= s.Level * XPPerLevel
		s.Level++
		s.MaxHealth += HealthPerLevel
		s.Health = s.MaxHealth
		events = append(events, NewEvent(EventLevelUp, map[string]int{
			"level":      s.Level,
			"max_health": s.MaxHealth,
		}))
	}
	return events
}

// unlock adds id to the unlocked set. It reports false when id was already
// unlocked or is not in the catalog.
func unlock(s *model.PlayerState, id string) (model.Achievement, bool) {
	a, ok := LookupAchievement(id)
	if !ok || s.UnlockedAchievements.Has(id) {
		return model.Achievement{}, false
	}
	s.UnlockedAchievements[id] = struct{}{}
	return a, true
}

func appendUnlock(events []model.GameEvent, s *model.PlayerState, id string) []model.GameEvent {
	if a, ok := unlock(s, id); ok {
		events = append(events, NewEvent(EventAchievement, a))
	}
	return events
}

// NewEvent encodes data as a GameEvent payload.
func NewEvent(eventType string, data any) model.GameEvent {
	// Event payloads are plain structs and maps; encoding cannot fail.
	raw, _ := json.Marshal(data)
	return model.GameEvent{Type: eventType, Data: raw}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
