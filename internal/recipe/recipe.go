// Package recipe loads and validates simulation recipe files: CUE
// documents describing the seeded parameters of one simulation run.
// Loading compiles the caller's CUE value, unifies it against a schema,
// then decodes it into a typed Go struct.
package recipe

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// Recipe is the decoded, validated configuration for one simulation run.
type Recipe struct {
	Seed        uint64  `json:"seed"`
	Steps       int     `json:"steps"`
	CrashEvery  int     `json:"crashEvery"`
	SuccessRate float64 `json:"successRate"`
	Description string  `json:"description"`
}

// Load parses and validates the CUE document at source (file contents, not
// a path), unifying it with the recipe schema and decoding defaults.
func Load(source []byte) (*Recipe, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("recipe: compile schema: %w", err)
	}

	doc := ctx.CompileBytes(source)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("recipe: compile recipe: %w", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Err(); err != nil {
		return nil, fmt.Errorf("recipe: unify with schema: %w", err)
	}
	if err := unified.Validate(); err != nil {
		return nil, fmt.Errorf("recipe: validate: %w", err)
	}

	var r Recipe
	if err := unified.Decode(&r); err != nil {
		return nil, fmt.Errorf("recipe: decode: %w", err)
	}
	return &r, nil
}
