// Package search implements the searcher and context assembly pipeline
// (spec §4.9): semantic top-k retrieval, optional graph-traversal expansion
// in three escalating modes, and a Guarded MMR selector that turns the
// ranked candidate set into a token-budgeted ContextPackage.
package search

import "github.com/cortexlabs/cortex-core/internal/model"

// ContextMode selects how the final ContextPackage groups its chunks.
type ContextMode string

const (
	ContextModeDependencyTier ContextMode = "dependency_tier"
	ContextModeFile           ContextMode = "file"
)

// MultiHop configures relationship-graph expansion. DependencyChain opts
// into the full tiered traversal of mode 1 (spec §4.9); when false (the
// default) an enabled multi-hop query runs mode 2, the lighter re-rank-only
// relationship-aware mode.
type MultiHop struct {
	Enabled         bool
	MaxHops         int
	DependencyChain bool
}

// Request is the search API's input (spec §6 `search`).
type Request struct {
	Task        string
	MaxChunks   int
	FileFilters []string
	MultiHop    MultiHop
	ContextMode ContextMode
	TokenBudget int
}

// Tier is one of the four dependency-chain priority tiers (spec §4.9 mode 1).
type Tier string

const (
	TierCritical   Tier = "critical"
	TierForward    Tier = "forward"
	TierBackward   Tier = "backward"
	TierContextual Tier = "contextual"
)

// Candidate is a scored chunk under consideration for the final selection.
type Candidate struct {
	Chunk    *model.Chunk
	Score    float64
	Tier     Tier
	Critical bool // pinned: must survive MMR selection
}

// RelationshipPath mirrors the graph package's traversal path shape for the
// response payload, avoiding a hard dependency from callers on internal/graph.
type RelationshipPath struct {
	Symbols       []string
	TotalStrength float64
	Description   string
}

// ContextGroup is one themed cluster of chunks in the assembled package.
type ContextGroup struct {
	Theme   string
	ChunkIDs []string
}

// ContextPackage is the assembled, grouped result handed back to callers.
type ContextPackage struct {
	Groups       []ContextGroup
	Summary      string
	RelatedFiles []string
	Insights     []string
	TotalTokens  int
	Efficiency   float64
}

// Response is the search API's output (spec §6 `search`).
type Response struct {
	Status                string
	Chunks                []*model.Chunk
	ContextPackage         ContextPackage
	QueryTimeMs            int64
	TotalChunksConsidered  int
	Mode                   string
	RelationshipPaths      []RelationshipPath
	DependencyChain        []Tier
	EfficiencyScore        float64
}

const (
	defaultTokenBudget  = 4000
	tokenBudgetReserve  = 0.15
	defaultMaxChunks    = 20
)
