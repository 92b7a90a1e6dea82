package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/tools"
)

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("encounter",
			mcplib.WithPromptDescription("Set up a fight with a bestiary creature, using lookup_creature and roll_dice"),
			mcplib.WithArgument("creature",
				mcplib.ArgumentDescription("Creature name, e.g. Goblin"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleEncounterPrompt,
	)

	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("townsfolk",
			mcplib.WithPromptDescription("Introduce a new NPC at a location"),
			mcplib.WithArgument("location",
				mcplib.ArgumentDescription("Where the meeting happens; defaults to the Village Square"),
			),
		),
		s.handleTownsfolkPrompt,
	)
}

func (s *Server) handleEncounterPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	name := strings.TrimSpace(request.Params.Arguments["creature"])
	if name == "" {
		return nil, fmt.Errorf("creature argument is required")
	}
	c, ok := game.LookupCreature(name)
	if !ok {
		return nil, fmt.Errorf("unknown creature %q", name)
	}

	return mcplib.NewGetPromptResult(
		fmt.Sprintf("Encounter with a %s", c.Name),
		[]mcplib.PromptMessage{
			mcplib.NewPromptMessage(mcplib.RoleUser, mcplib.NewTextContent(fmt.Sprintf(`A %s %s blocks the path. %s

1. CALL %s with name="%s" to read its tier, health and attack.
2. CALL %s with the skill the hero uses (strength for a blow, dexterity to dodge) and a difficulty of %d.
3. Describe the exchange in two or three sentences, honoring the roll.`,
				c.Emoji, c.Name, c.Description,
				tools.LookupCreature, c.Name,
				tools.RollDice, 10+2*c.Tier,
			))),
		},
	), nil
}

func (s *Server) handleTownsfolkPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	where := game.StartingLocation
	if arg := request.Params.Arguments["location"]; arg != "" {
		canon, ok := game.CanonicalLocation(arg)
		if !ok {
			return nil, fmt.Errorf("unknown location %q", arg)
		}
		where = canon
	}
	if !slices.Contains(s.catalog.Names(), tools.GenerateNPC) {
		return nil, fmt.Errorf("%s is not available", tools.GenerateNPC)
	}

	return mcplib.NewGetPromptResult(
		"Meet someone new at "+where,
		[]mcplib.PromptMessage{
			mcplib.NewPromptMessage(mcplib.RoleUser, mcplib.NewTextContent(fmt.Sprintf(
				"CALL %s, then introduce the character to a traveler at the %s in the voice of the innkeeper. Keep it under four sentences.",
				tools.GenerateNPC, where,
			))),
		},
	), nil
}
