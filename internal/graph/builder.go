package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

// Mapper builds graph data from indexed chunks (spec §4.8's Dependency
// Mapper): it parses the imports/exports/calls already extracted by the
// chunker plus git co-change history into typed edges.
type Mapper interface {
	// BuildFull builds the complete graph from every chunk.
	BuildFull(ctx context.Context, chunks []*model.Chunk) (*GraphData, error)

	// BuildIncremental splices changed files' chunks into a previous graph,
	// dropping stale nodes/edges for removed or changed files first.
	BuildIncremental(ctx context.Context, previous *GraphData, changedFiles []string, allChunks []*model.Chunk) (*GraphData, error)
}

type mapper struct{}

// NewMapper creates a Mapper.
func NewMapper() Mapper {
	return &mapper{}
}

func (m *mapper) BuildFull(ctx context.Context, chunks []*model.Chunk) (*GraphData, error) {
	nodes := make([]Node, 0, len(chunks))
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		nodes = append(nodes, nodeFromChunk(c))
	}

	edges := m.extractEdges(chunks)
	return &GraphData{Nodes: nodes, Edges: edges}, nil
}

func (m *mapper) BuildIncremental(ctx context.Context, previous *GraphData, changedFiles []string, allChunks []*model.Chunk) (*GraphData, error) {
	if previous == nil {
		return m.BuildFull(ctx, allChunks)
	}

	changed := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changed[f] = true
	}

	preservedNodes := make([]Node, 0, len(previous.Nodes))
	for _, n := range previous.Nodes {
		if !changed[n.File] {
			preservedNodes = append(preservedNodes, n)
		}
	}

	preservedEdges := make([]Edge, 0, len(previous.Edges))
	for _, e := range previous.Edges {
		if e.Location != nil && changed[e.Location.File] {
			continue
		}
		preservedEdges = append(preservedEdges, e)
	}

	var changedChunks []*model.Chunk
	for _, c := range allChunks {
		if changed[c.FilePath] {
			changedChunks = append(changedChunks, c)
		}
	}

	newNodes := make([]Node, 0, len(changedChunks))
	for _, c := range changedChunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		newNodes = append(newNodes, nodeFromChunk(c))
	}
	newEdges := m.extractEdges(allChunks) // co-change and cross-file edges need the full set to resolve targets

	allNodes := dedupeNodes(append(preservedNodes, newNodes...))
	nodeSet := make(map[string]bool, len(allNodes))
	for _, n := range allNodes {
		nodeSet[n.ID] = true
	}

	merged := dedupeEdges(append(preservedEdges, newEdges...))
	validEdges := merged[:0]
	for _, e := range merged {
		if nodeSet[e.From] && nodeSet[e.To] {
			validEdges = append(validEdges, e)
		}
	}

	return &GraphData{Nodes: allNodes, Edges: validEdges}, nil
}

func nodeFromChunk(c *model.Chunk) Node {
	return Node{
		ID:        c.ID,
		Kind:      nodeKind(c.Kind),
		Symbol:    c.SymbolName,
		File:      c.FilePath,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
	}
}

func nodeKind(k model.ChunkKind) NodeKind {
	switch k {
	case model.ChunkFunction:
		return NodeFunction
	case model.ChunkClass:
		return NodeClass
	case model.ChunkConfig:
		return NodeConfig
	case model.ChunkDocumentation:
		return NodeDocumentation
	default:
		return NodeGeneric
	}
}

// extractEdges derives typed edges from each chunk's relation fields
// (populated by the chunker and the analyzer) plus git co-change history.
// Targets are resolved by symbol name against every chunk in the set; a
// relation that matches no known symbol is dropped rather than left
// dangling.
func (m *mapper) extractEdges(chunks []*model.Chunk) []Edge {
	bySymbol := make(map[string][]*model.Chunk)
	for _, c := range chunks {
		if c.SymbolName != "" {
			bySymbol[c.SymbolName] = append(bySymbol[c.SymbolName], c)
		}
	}
	byFile := make(map[string][]*model.Chunk)
	for _, c := range chunks {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	var edges []Edge
	for _, c := range chunks {
		loc := &Location{File: c.FilePath, Line: c.StartLine}

		for _, callee := range c.Calls {
			for _, target := range bySymbol[callee] {
				if target.ID == c.ID {
					continue
				}
				edges = append(edges, Edge{From: c.ID, To: target.ID, Type: EdgeCalls, Strength: 1.0, Confidence: 0.8, Location: loc})
			}
		}

		for _, imp := range c.Imports {
			for _, target := range importTargets(byFile, imp) {
				if target.ID == c.ID {
					continue
				}
				edges = append(edges, Edge{From: c.ID, To: target.ID, Type: EdgeImports, Strength: 1.0, Confidence: 0.6, Location: loc})
			}
		}

		for _, sym := range c.Exports {
			edges = append(edges, Edge{From: c.ID, To: exportNodeID(c, sym), Type: EdgeExports, Strength: 1.0, Confidence: 0.9, Location: loc})
		}

		for _, sym := range c.DataFlow {
			for _, target := range bySymbol[sym] {
				if target.ID == c.ID {
					continue
				}
				edges = append(edges, Edge{From: c.ID, To: target.ID, Type: EdgeDataFlow, Strength: 0.6, Confidence: 0.5, Location: loc})
			}
		}

		for _, path := range c.CoChange {
			for _, target := range byFile[path] {
				edges = append(edges, Edge{From: c.ID, To: target.ID, Type: EdgeCoChange, Strength: coChangeStrength(c, target), Confidence: 0.5, Location: loc})
			}
		}
	}

	return dedupeEdges(edges)
}

// importTargets resolves an import path to chunks in the matching file,
// tolerating both exact paths and path suffixes (relative vs. package-form
// imports resolve differently across languages).
func importTargets(byFile map[string][]*model.Chunk, importPath string) []*model.Chunk {
	if chunks, ok := byFile[importPath]; ok {
		return chunks
	}
	var matches []*model.Chunk
	for file, chunks := range byFile {
		if strings.HasSuffix(file, importPath) || strings.HasSuffix(importPath, file) {
			matches = append(matches, chunks...)
		}
	}
	return matches
}

// exportNodeID synthesizes a stable id for a symbol a chunk exports, so that
// export edges have a target even when nothing else in the set references
// the symbol by name yet.
func exportNodeID(c *model.Chunk, symbol string) string {
	return c.FilePath + "#" + symbol
}

func coChangeStrength(a, b *model.Chunk) float64 {
	countA, countB := len(a.CoChange), len(b.CoChange)
	if countA == 0 && countB == 0 {
		return 0.5
	}
	total := countA + countB
	if total > 10 {
		total = 10
	}
	return 0.3 + 0.07*float64(total)
}

func dedupeNodes(nodes []Node) []Node {
	seen := make(map[string]Node, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, exists := seen[n.ID]; !exists {
			order = append(order, n.ID)
		}
		seen[n.ID] = n
	}
	sort.Strings(order)
	out := make([]Node, 0, len(order))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out
}

func dedupeEdges(edges []Edge) []Edge {
	type key struct {
		from, to string
		typ      EdgeType
	}
	seen := make(map[key]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		k := key{e.From, e.To, e.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
