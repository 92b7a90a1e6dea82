// Package tools is the fixed catalog of capabilities the model may invoke.
//
// Each tool has a JSON schema (built with mcp-go so the same definition can
// be advertised to a model or served over MCP) and a pure handler that turns
// raw arguments into a game.Result. Handlers never touch player state.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
)

// ErrNotFound is returned by Dispatch for names outside the catalog.
var ErrNotFound = errors.New("tools: unknown tool")

// Tool names.
const (
	MoveToLocation  = "move_to_location"
	AddItem         = "add_item"
	RemoveItem      = "remove_item"
	ModifyHealth    = "modify_health"
	ModifyGold      = "modify_gold"
	AwardExperience = "award_experience"
	RollDice        = "roll_dice"
	GenerateNPC     = "generate_npc"
	DefeatCreature  = "defeat_creature"
	LookupCreature  = "lookup_creature"
)

// ReadOnlyNames are the tools whose results never change player state.
var ReadOnlyNames = []string{RollDice, GenerateNPC, LookupCreature}

type handler func(args Args, r Roller) (game.Result, error)

// Tool pairs a schema with its handler.
type Tool struct {
	Def      mcplib.Tool
	ReadOnly bool
	run      handler
}

// Catalog is an ordered, immutable set of tools. Safe for concurrent use.
type Catalog struct {
	tools  []*Tool
	byName map[string]*Tool
	roller Roller
}

// NewCatalog returns the full catalog. A nil roller uses DefaultRoller.
func NewCatalog(roller Roller) *Catalog {
	if roller == nil {
		roller = DefaultRoller()
	}
	return newCatalog(builtins(), roller)
}

func newCatalog(tools []*Tool, roller Roller) *Catalog {
	c := &Catalog{tools: tools, byName: make(map[string]*Tool, len(tools)), roller: roller}
	for _, t := range tools {
		c.byName[t.Def.Name] = t
	}
	return c
}

// Names returns tool names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.tools))
	for i, t := range c.tools {
		out[i] = t.Def.Name
	}
	return out
}

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Definitions returns the mcp-go tool definitions in catalog order.
func (c *Catalog) Definitions() []mcplib.Tool {
	out := make([]mcplib.Tool, len(c.tools))
	for i, t := range c.tools {
		out[i] = t.Def
	}
	return out
}

// List returns the model-facing schemas in catalog order.
func (c *Catalog) List() []model.ToolSchema {
	out := make([]model.ToolSchema, len(c.tools))
	for i, t := range c.tools {
		out[i] = model.ToolSchema{
			Name:            t.Def.Name,
			Description:     t.Def.Description,
			ParameterSchema: parameterSchema(t.Def),
		}
	}
	return out
}

// Subset returns a catalog restricted to names, keeping catalog order.
// Unknown names are ignored.
func (c *Catalog) Subset(names ...string) *Catalog {
	var kept []*Tool
	for _, t := range c.tools {
		if slices.Contains(names, t.Def.Name) {
			kept = append(kept, t)
		}
	}
	return newCatalog(kept, c.roller)
}

// ReadOnly returns the subset of tools that never change player state.
func (c *Catalog) ReadOnly() *Catalog {
	return c.Subset(ReadOnlyNames...)
}

// Dispatch runs the named tool. A panic inside the handler is recovered and
// returned as an error for this call only.
func (c *Catalog) Dispatch(ctx context.Context, name string, args map[string]any) (res game.Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("tools: %s panicked: %v", name, p)
		}
	}()
	return t.run(Args(args), c.roller)
}

// parameterSchema renders the input schema as a plain JSON object.
func parameterSchema(t mcplib.Tool) map[string]any {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}
