package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/maypok86/otter"
)

// MaxFileCacheWeight bounds the file-context cache used to inject source
// snippets into traversal results.
const MaxFileCacheWeight = 50 * 1024 * 1024 // 50MB

// Traverser answers bounded, cycle-safe relationship queries over a graph
// snapshot (spec §4.8's Traversal API).
type Traverser interface {
	Traverse(ctx context.Context, req TraverseRequest) (*TraverseResponse, error)
	Reload(ctx context.Context) error
	Close() error
}

type traverser struct {
	storage Storage
	rootDir string
	mu      sync.RWMutex

	g graph.Graph[string, *Node]

	// outgoing/incoming index edges by endpoint for O(1) neighbor lookup,
	// grouped further by type inside queryNeighbors.
	outgoing map[string][]Edge
	incoming map[string][]Edge

	fileCache otter.Cache[string, []string]
}

// NewTraverser builds a Traverser over the graph held in storage.
func NewTraverser(storage Storage, rootDir string) (Traverser, error) {
	cache, err := otter.MustBuilder[string, []string](MaxFileCacheWeight).
		Cost(func(key string, value []string) uint32 { return uint32(len(value) * 100) }).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("graph: creating file cache: %w", err)
	}

	t := &traverser{storage: storage, rootDir: rootDir, fileCache: cache}
	if err := t.Reload(context.Background()); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *traverser) Reload(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := t.storage.Load()
	if err != nil {
		return fmt.Errorf("graph: loading: %w", err)
	}
	if data == nil {
		data = &GraphData{}
	}

	t.g = graph.New(func(n *Node) string { return n.ID }, graph.Directed())
	for i := range data.Nodes {
		_ = t.g.AddVertex(&data.Nodes[i])
	}

	t.outgoing = make(map[string][]Edge)
	t.incoming = make(map[string][]Edge)
	for _, e := range data.Edges {
		_ = t.g.AddEdge(e.From, e.To)
		t.outgoing[e.From] = append(t.outgoing[e.From], e)
		t.incoming[e.To] = append(t.incoming[e.To], e)
	}

	t.fileCache.Clear()
	return nil
}

func (t *traverser) Close() error {
	t.fileCache.Clear()
	return nil
}

// frontierEntry tracks a discovered node alongside the path that reached it.
type frontierEntry struct {
	id    string
	depth int
	path  []string
	strength float64
}

// Traverse runs a depth-bounded BFS from req.FocusSymbols (or every node
// matching req.BaseQuery when FocusSymbols is empty), following only edges
// whose type is in req.RelationshipTypes (all types, if unset) and whose
// strength/confidence clear the requested floors. Cycles are broken by a
// visited set keyed by node id.
func (t *traverser) Traverse(ctx context.Context, req TraverseRequest) (*TraverseResponse, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	opts := normalizeOptions(req.Options)

	seeds := t.resolveSeeds(req)
	if len(seeds) == 0 {
		return &TraverseResponse{}, nil
	}

	visited := make(map[string]int, len(seeds)*4)
	var frontier []frontierEntry
	for _, id := range seeds {
		visited[id] = 0
		frontier = append(frontier, frontierEntry{id: id, depth: 0, path: []string{id}, strength: 1.0})
	}

	related := make(map[string]frontierEntry)
	var paths []RelationshipPath

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		current := frontier[0]
		frontier = frontier[1:]

		if current.depth >= opts.MaxDepth {
			continue
		}

		neighbors := t.neighbors(current.id, opts.Direction, req.RelationshipTypes, opts.MinStrength, opts.MinConfidence)
		neighbors = pruneNeighbors(neighbors, opts.PruneStrategy, opts.MaxResults)

		for _, edge := range neighbors {
			nextID := edge.To
			if nextID == current.id {
				continue
			}
			nextStrength := current.strength * edge.Strength

			if prevDepth, seen := visited[nextID]; seen && prevDepth <= current.depth+1 {
				continue
			}
			visited[nextID] = current.depth + 1

			nextPath := append(append([]string(nil), current.path...), nextID)
			entry := frontierEntry{id: nextID, depth: current.depth + 1, path: nextPath, strength: nextStrength}
			related[nextID] = entry

			if opts.IncludeTransitive || current.depth == 0 {
				paths = append(paths, RelationshipPath{
					Symbols:       symbolsForPath(t, nextPath),
					TotalStrength: nextStrength,
					Description:   describePath(t, nextPath, edge.Type),
				})
			}

			frontier = append(frontier, entry)
			if len(related) >= opts.MaxResults {
				break
			}
		}
		if len(related) >= opts.MaxResults {
			break
		}
	}

	relatedIDs := make([]string, 0, len(related))
	for id := range related {
		relatedIDs = append(relatedIDs, id)
	}
	sort.Strings(relatedIDs)

	groups := t.buildContextGroups(seeds, relatedIDs)
	totalTokens := t.estimateTokens(append(append([]string(nil), seeds...), relatedIDs...), req)

	return &TraverseResponse{
		PrimaryChunks:     seeds,
		RelatedChunks:     relatedIDs,
		RelationshipPaths: paths,
		ContextGroups:     groups,
		EfficiencyScore:   efficiencyScore(len(seeds), len(relatedIDs), opts.MaxResults),
		TotalTokens:       totalTokens,
	}, nil
}

func normalizeOptions(opts TraverseOptions) TraverseOptions {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.MaxDepth > absoluteMaxDepth {
		opts.MaxDepth = absoluteMaxDepth
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.Direction == "" {
		opts.Direction = DirForward
	}
	if opts.PruneStrategy == "" {
		opts.PruneStrategy = PruneNone
	}
	return opts
}

func (t *traverser) resolveSeeds(req TraverseRequest) []string {
	if len(req.FocusSymbols) > 0 {
		var seeds []string
		for _, symbol := range req.FocusSymbols {
			for id, n := range t.vertices() {
				if n.Symbol == symbol || n.ID == symbol {
					seeds = append(seeds, id)
				}
			}
		}
		return seeds
	}

	if req.BaseQuery == "" {
		return nil
	}
	var seeds []string
	for id, n := range t.vertices() {
		if strings.Contains(strings.ToLower(n.File), strings.ToLower(req.BaseQuery)) ||
			strings.Contains(strings.ToLower(n.Symbol), strings.ToLower(req.BaseQuery)) {
			seeds = append(seeds, id)
		}
	}
	sort.Strings(seeds)
	return seeds
}

func (t *traverser) vertices() map[string]*Node {
	out := make(map[string]*Node)
	ids, err := t.g.Order()
	if err != nil || ids == 0 {
		return out
	}
	adjacency, err := t.g.AdjacencyMap()
	if err != nil {
		return out
	}
	for id := range adjacency {
		if v, err := t.g.Vertex(id); err == nil {
			out[id] = v
		}
	}
	return out
}

// neighbors returns outgoing and/or incoming edges from id filtered by type
// and strength/confidence floors, per the requested direction.
func (t *traverser) neighbors(id string, dir Direction, types []EdgeType, minStrength, minConfidence float64) []Edge {
	var candidates []Edge
	if dir == DirForward || dir == DirBoth {
		candidates = append(candidates, t.outgoing[id]...)
	}
	if dir == DirBackward || dir == DirBoth {
		for _, e := range t.incoming[id] {
			candidates = append(candidates, Edge{From: e.To, To: e.From, Type: e.Type, Strength: e.Strength, Confidence: e.Confidence, Location: e.Location})
		}
	}

	var filtered []Edge
	for _, e := range candidates {
		if len(types) > 0 && !containsType(types, e.Type) {
			continue
		}
		if e.Strength < minStrength || e.Confidence < minConfidence {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func containsType(types []EdgeType, t EdgeType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// pruneNeighbors bounds fan-out per the requested strategy: "strength" keeps
// the strongest edges, "relevance" keeps the highest-confidence edges, and
// "none" keeps everything (still bounded by maxResults as a backstop).
func pruneNeighbors(edges []Edge, strategy PruneStrategy, maxResults int) []Edge {
	switch strategy {
	case PruneStrength:
		sort.Slice(edges, func(i, j int) bool { return edges[i].Strength > edges[j].Strength })
	case PruneRelevance:
		sort.Slice(edges, func(i, j int) bool { return edges[i].Confidence > edges[j].Confidence })
	}
	limit := maxResults
	if strategy == PruneNone {
		limit = maxResults * 4 // still backstopped, just far looser
	}
	if limit > 0 && len(edges) > limit {
		edges = edges[:limit]
	}
	return edges
}

func symbolsForPath(t *traverser, path []string) []string {
	verts := t.vertices()
	symbols := make([]string, 0, len(path))
	for _, id := range path {
		if n, ok := verts[id]; ok && n.Symbol != "" {
			symbols = append(symbols, n.Symbol)
		} else {
			symbols = append(symbols, id)
		}
	}
	return symbols
}

func describePath(t *traverser, path []string, via EdgeType) string {
	symbols := symbolsForPath(t, path)
	return strings.Join(symbols, fmt.Sprintf(" --%s--> ", via))
}

// buildContextGroups clusters related ids by file, tagging each group with
// the relationship types observed among its members.
func (t *traverser) buildContextGroups(seeds, related []string) []ContextGroup {
	verts := t.vertices()
	byFile := make(map[string][]string)
	for _, id := range append(append([]string(nil), seeds...), related...) {
		if n, ok := verts[id]; ok {
			byFile[n.File] = append(byFile[n.File], id)
		}
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	groups := make([]ContextGroup, 0, len(files))
	for _, f := range files {
		ids := byFile[f]
		relTypes := make(map[EdgeType]bool)
		for _, id := range ids {
			for _, e := range t.outgoing[id] {
				relTypes[e.Type] = true
			}
		}
		types := make([]EdgeType, 0, len(relTypes))
		for typ := range relTypes {
			types = append(types, typ)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

		groups = append(groups, ContextGroup{
			Theme:         filepath.Base(f),
			ChunkIDs:      ids,
			Importance:    float64(len(ids)) / float64(len(seeds)+len(related)+1),
			Relationships: types,
		})
	}
	return groups
}

func efficiencyScore(seedCount, relatedCount, maxResults int) float64 {
	if maxResults == 0 {
		return 0
	}
	total := seedCount + relatedCount
	ratio := float64(total) / float64(maxResults)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// estimateTokens sums a ~chars/4 estimate over every chunk's file context,
// reading (and caching) each file at most once per traversal.
func (t *traverser) estimateTokens(ids []string, req TraverseRequest) int {
	verts := t.vertices()
	total := 0
	for _, id := range ids {
		n, ok := verts[id]
		if !ok {
			continue
		}
		lines, err := t.fileLines(n.File)
		if err != nil {
			continue
		}
		start, end := n.StartLine-1, n.EndLine
		if req.IncludeContext {
			start -= req.ContextRadius
			end += req.ContextRadius
		}
		if start < 0 {
			start = 0
		}
		if end > len(lines) {
			end = len(lines)
		}
		if start >= end {
			continue
		}
		chars := 0
		for _, l := range lines[start:end] {
			chars += len(l)
		}
		total += chars / 4
	}
	return total
}

func (t *traverser) fileLines(relPath string) ([]string, error) {
	if lines, ok := t.fileCache.Get(relPath); ok {
		return lines, nil
	}
	content, err := os.ReadFile(filepath.Join(t.rootDir, relPath))
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	t.fileCache.Set(relPath, lines)
	return lines, nil
}
