package game

import "github.com/ashita-ai/wyrmgate/internal/model"

// predicates are the snapshot-derived achievements. Event-driven ones
// (combat, dice) are unlocked by Apply when their trigger happens.
var predicates = []struct {
	id   string
	test func(model.PlayerState) bool
}{
	{AchTreasureHunter, func(s model.PlayerState) bool { return s.Gold >= 100 }},
	{AchWealthy, func(s model.PlayerState) bool { return s.Gold >= 1000 }},
	{AchExplorer, func(s model.PlayerState) bool { return len(s.VisitedLocations) >= 5 }},
	{AchCartographer, visitedAllLocations},
	{AchSeasoned, func(s model.PlayerState) bool { return s.Level >= 5 }},
	{AchLegend, func(s model.PlayerState) bool { return s.Level >= 10 }},
	{AchLuckyStreak, func(s model.PlayerState) bool { return s.MaxStreak >= 5 }},
	{AchHoarder, func(s model.PlayerState) bool { return len(s.Inventory) >= 10 }},
}

func visitedAllLocations(s model.PlayerState) bool {
	for _, l := range Locations {
		if !s.VisitedLocations.Has(l.Name) {
			return false
		}
	}
	return true
}

// Sweep unlocks every snapshot achievement the state now satisfies and
// returns one event per new unlock. Unlocked achievements are never removed.
// The input state is not mutated.
func Sweep(state model.PlayerState) (model.PlayerState, []model.GameEvent) {
	next := state.Clone()
	ensureSets(&next)
	var events []model.GameEvent
	for _, p := range predicates {
		if next.UnlockedAchievements.Has(p.id) || !p.test(next) {
			continue
		}
		events = appendUnlock(events, &next, p.id)
	}
	return next, events
}
