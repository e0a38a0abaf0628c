package graph

import "time"

// NodeKind mirrors a chunk's own classification for query convenience.
type NodeKind string

const (
	NodeFunction      NodeKind = "function"
	NodeClass         NodeKind = "class"
	NodeConfig        NodeKind = "config"
	NodeDocumentation NodeKind = "documentation"
	NodeGeneric       NodeKind = "generic"
)

// Node is one chunk as a graph vertex.
type Node struct {
	ID        string   `json:"id"` // chunk ID
	Kind      NodeKind `json:"kind"`
	Symbol    string   `json:"symbol,omitempty"`
	File      string   `json:"file"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
}

// EdgeType is the closed set of relationship kinds the data model supports.
type EdgeType string

const (
	EdgeCalls      EdgeType = "calls"
	EdgeImports    EdgeType = "imports"
	EdgeExports    EdgeType = "exports"
	EdgeDataFlow   EdgeType = "data_flow"
	EdgeCoChange   EdgeType = "co_change"
	EdgeExtends    EdgeType = "extends"
	EdgeImplements EdgeType = "implements"
	EdgeThrows     EdgeType = "throws"
	EdgeCatches    EdgeType = "catches"
	EdgeDependsOn  EdgeType = "depends_on"
)

// Edge is a typed, weighted relationship between two nodes.
type Edge struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Type       EdgeType  `json:"type"`
	Strength   float64   `json:"strength"`   // relative confidence/frequency of this relation, [0,1]
	Confidence float64   `json:"confidence"` // how sure the mapper is this edge is real, [0,1]
	Location   *Location `json:"location,omitempty"`
}

// Location is the source position an edge was inferred from.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// GraphMetadata describes a persisted graph snapshot.
type GraphMetadata struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
}

// GraphData is the complete graph, as persisted by the dual-tier store.
type GraphData struct {
	Metadata GraphMetadata `json:"_metadata"`
	Nodes    []Node        `json:"nodes"`
	Edges    []Edge        `json:"edges"`
}

// FileGraphData is the graph data extracted from a single file, used to
// splice incremental updates into a previous GraphData.
type FileGraphData struct {
	FilePath string
	Nodes    []Node
	Edges    []Edge
}

// Direction bounds which edge endpoint a traversal follows.
type Direction string

const (
	DirForward  Direction = "forward" // follow From -> To
	DirBackward Direction = "backward" // follow To -> From
	DirBoth     Direction = "both"
)

// PruneStrategy bounds how aggressively a traversal discards low-value paths.
type PruneStrategy string

const (
	PruneNone      PruneStrategy = "none"
	PruneStrength  PruneStrategy = "strength"
	PruneRelevance PruneStrategy = "relevance"
)

// TraverseOptions controls the shape and cost of a traversal.
type TraverseOptions struct {
	MaxDepth          int
	Direction         Direction
	MinStrength       float64
	MinConfidence     float64
	IncludeTransitive bool
	PruneStrategy     PruneStrategy
	MaxResults        int
}

// TraverseRequest is the traversal API's input (spec §4.8).
type TraverseRequest struct {
	BaseQuery         string
	FocusSymbols      []string
	RelationshipTypes []EdgeType
	Options           TraverseOptions
	IncludeContext    bool
	ContextRadius     int
}

// RelationshipPath describes one chain of related symbols discovered during
// traversal, with an aggregate strength.
type RelationshipPath struct {
	Symbols       []string `json:"symbols"`
	TotalStrength float64  `json:"total_strength"`
	Description   string   `json:"description"`
}

// ContextGroup clusters related chunk ids under a common theme.
type ContextGroup struct {
	Theme         string     `json:"theme"`
	ChunkIDs      []string   `json:"chunk_ids"`
	Importance    float64    `json:"importance"`
	Relationships []EdgeType `json:"relationships"`
}

// TraverseResponse is the traversal API's output (spec §4.8).
type TraverseResponse struct {
	PrimaryChunks     []string           `json:"primary_chunks"`
	RelatedChunks     []string           `json:"related_chunks"`
	RelationshipPaths []RelationshipPath `json:"relationship_paths"`
	ContextGroups     []ContextGroup     `json:"context_groups"`
	EfficiencyScore   float64            `json:"efficiency_score"`
	TotalTokens       int                `json:"total_tokens"`
}

const (
	defaultMaxDepth   = 2
	defaultMaxResults = 100
	absoluteMaxDepth  = 10
)
