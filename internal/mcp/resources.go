package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/wyrmgate/internal/ctxutil"
	"github.com/ashita-ai/wyrmgate/internal/game"
)

const (
	uriLocations    = "wyrmgate://world/locations"
	uriBestiary     = "wyrmgate://world/bestiary"
	uriAchievements = "wyrmgate://world/achievements"
	uriCharacter    = "wyrmgate://player/character"
	creaturePrefix  = "wyrmgate://world/creature/"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(uriLocations, "Locations",
			mcplib.WithResourceDescription("The canonical world map"),
			mcplib.WithMIMEType("application/json"),
		),
		s.staticResource(uriLocations, game.Locations),
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(uriBestiary, "Bestiary",
			mcplib.WithResourceDescription("Every known creature with its tier and combat numbers"),
			mcplib.WithMIMEType("application/json"),
		),
		s.staticResource(uriBestiary, game.Bestiary),
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(uriAchievements, "Achievements",
			mcplib.WithResourceDescription("The achievement catalog"),
			mcplib.WithMIMEType("application/json"),
		),
		s.staticResource(uriAchievements, game.Achievements),
	)

	// wyrmgate://world/creature/{name}
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(creaturePrefix+"{name}", "Creature",
			mcplib.WithTemplateDescription("A single bestiary entry, matched case-insensitively"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleCreature,
	)

	if s.states != nil {
		s.mcpServer.AddResource(
			mcplib.NewResource(uriCharacter, "Character Sheet",
				mcplib.WithResourceDescription("The calling player's current character"),
				mcplib.WithMIMEType("application/json"),
			),
			s.handleCharacter,
		)
	}
}

func (s *Server) staticResource(uri string, v any) func(context.Context, mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return func(context.Context, mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		return jsonContents(uri, v)
	}
}

func (s *Server) handleCreature(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	name, err := parseCreatureURI(uri)
	if err != nil {
		return nil, err
	}
	c, ok := game.LookupCreature(name)
	if !ok {
		return nil, fmt.Errorf("mcp: unknown creature %q", name)
	}
	return jsonContents(uri, c)
}

func (s *Server) handleCharacter(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	userID := ctxutil.UserIDFromContext(ctx)
	if userID == "" {
		return nil, fmt.Errorf("mcp: character sheet requires an authenticated caller")
	}
	st, err := s.states.LoadOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("mcp: load character: %w", err)
	}
	return jsonContents(uriCharacter, st)
}

// parseCreatureURI extracts the creature name from
// wyrmgate://world/creature/{name}. The name may be percent-encoded.
func parseCreatureURI(uri string) (string, error) {
	raw, ok := strings.CutPrefix(uri, creaturePrefix)
	if !ok || strings.Contains(raw, "/") {
		return "", fmt.Errorf("mcp: invalid creature URI: %s", uri)
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("mcp: invalid creature URI: %s", uri)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("mcp: empty creature name in URI: %s", uri)
	}
	return name, nil
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
