package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cortexlabs/cortex-core/internal/embedder"
	"github.com/cortexlabs/cortex-core/internal/graph"
	"github.com/cortexlabs/cortex-core/internal/model"
	"github.com/cortexlabs/cortex-core/internal/vectorstore"
)

// Searcher composes the vector store and the relationship graph into the
// three-mode search pipeline (spec §4.9).
type Searcher struct {
	store     *vectorstore.Store
	traverser graph.Traverser // nil disables dependency-chain and relationship-aware modes
	embedder  embedder.Embedder
}

// New creates a Searcher. traverser may be nil when no graph is available,
// in which case every query runs in traditional mode.
func New(store *vectorstore.Store, traverser graph.Traverser, emb embedder.Embedder) *Searcher {
	return &Searcher{store: store, traverser: traverser, embedder: emb}
}

// Search runs the mode cascade described in spec §4.9 and assembles the
// final ContextPackage via Guarded MMR.
func (s *Searcher) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if req.MaxChunks <= 0 {
		req.MaxChunks = defaultMaxChunks
	}
	if req.TokenBudget <= 0 {
		req.TokenBudget = defaultTokenBudget
	}

	queryEmbedding, err := s.embedQuery(ctx, req.Task)
	if err != nil {
		return Response{}, fmt.Errorf("search: embedding query: %w", err)
	}

	seedMatches := s.store.SimilaritySearch(queryEmbedding, req.MaxChunks*2)
	seedMatches = filterByFile(seedMatches, req.FileFilters)

	var (
		candidates []Candidate
		paths      []RelationshipPath
		chain      []Tier
		mode       string
	)

	switch {
	case req.MultiHop.Enabled && req.MultiHop.DependencyChain && s.traverser != nil:
		mode = "smart_dependency_chain"
		candidates, paths, chain = s.smartDependencyChain(ctx, seedMatches, req)
	case req.MultiHop.Enabled && s.traverser != nil:
		mode = "relationship_aware"
		candidates, paths = s.relationshipAware(ctx, seedMatches, req)
	case req.MultiHop.Enabled:
		mode = "relationship_aware_unavailable_fallback"
		candidates = traditionalCandidates(seedMatches)
	default:
		mode = "traditional"
		candidates = traditionalCandidates(seedMatches)
	}

	selection := SelectMMR(candidates, req.MaxChunks, req.TokenBudget)
	pkg := assembleContextPackage(selection, req.ContextMode)

	chunks := make([]*model.Chunk, 0, len(selection.Chunks))
	for _, c := range selection.Chunks {
		chunks = append(chunks, c.Chunk)
	}

	return Response{
		Status:                "ok",
		Chunks:                chunks,
		ContextPackage:        pkg,
		QueryTimeMs:           time.Since(start).Milliseconds(),
		TotalChunksConsidered: len(seedMatches),
		Mode:                  mode,
		RelationshipPaths:     paths,
		DependencyChain:       chain,
		EfficiencyScore:       selection.BudgetUtilization,
	}, nil
}

func (s *Searcher) embedQuery(ctx context.Context, task string) ([]float32, error) {
	result, err := s.embedder.EmbedBatch(ctx, []string{task}, embedder.Options{})
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("search: embedder returned no vectors")
	}
	return result.Embeddings[0], nil
}

func filterByFile(matches []vectorstore.Match, filters []string) []vectorstore.Match {
	if len(filters) == 0 {
		return matches
	}
	var out []vectorstore.Match
	for _, m := range matches {
		for _, f := range filters {
			if strings.Contains(m.Chunk.FilePath, f) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func traditionalCandidates(matches []vectorstore.Match) []Candidate {
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, Candidate{Chunk: m.Chunk, Score: m.Score, Tier: TierContextual})
	}
	return out
}

// smartDependencyChain implements spec §4.9 mode 1: seed with top-k
// semantic hits (critical tier), expand each seed via the traverser, and
// bucket the results into forward/backward/contextual tiers in priority
// order.
func (s *Searcher) smartDependencyChain(ctx context.Context, seeds []vectorstore.Match, req Request) ([]Candidate, []RelationshipPath, []Tier) {
	var candidates []Candidate
	seen := make(map[string]bool)

	for _, m := range seeds {
		candidates = append(candidates, Candidate{Chunk: m.Chunk, Score: m.Score, Tier: TierCritical, Critical: true})
		seen[m.Chunk.ID] = true
	}

	var allPaths []RelationshipPath
	maxHops := req.MultiHop.MaxHops
	if maxHops <= 0 {
		maxHops = 2
	}

	for _, m := range seeds {
		resp, err := s.traverser.Traverse(ctx, graph.TraverseRequest{
			FocusSymbols: []string{m.Chunk.SymbolName},
			Options: graph.TraverseOptions{
				MaxDepth:  maxHops,
				Direction: graph.DirBoth,
			},
		})
		if err != nil {
			continue
		}

		for _, p := range resp.RelationshipPaths {
			allPaths = append(allPaths, RelationshipPath{Symbols: p.Symbols, TotalStrength: p.TotalStrength, Description: p.Description})
		}

		for _, id := range resp.RelatedChunks {
			if seen[id] {
				continue
			}
			seen[id] = true
			chunk, ok := s.store.Get(id)
			if !ok {
				continue
			}
			candidates = append(candidates, Candidate{
				Chunk: chunk,
				Score: m.Score * 0.8,
				Tier:  tierFor(chunk, m.Chunk),
			})
		}
	}

	return candidates, allPaths, []Tier{TierCritical, TierForward, TierBackward, TierContextual}
}

// tierFor classifies a discovered chunk relative to its seed: a caller of
// the seed is backward, a callee is forward, anything else contextual. This
// is a best-effort classification from the fields chunks already carry
// (exact tier would need the traversal edge direction, which the graph
// package's response does not currently surface per-chunk).
func tierFor(discovered, seed *model.Chunk) Tier {
	for _, c := range seed.Calls {
		if c == discovered.SymbolName {
			return TierForward
		}
	}
	for _, c := range discovered.Calls {
		if c == seed.SymbolName {
			return TierBackward
		}
	}
	return TierContextual
}

// relationshipAware implements spec §4.9 mode 2: seed with top-k semantic
// hits, union in traversal-discovered chunk ids without tiering them, and
// re-rank the whole set with a flat boost of
// 0.3·avg_path_strength + 0.2·avg_group_importance computed from the
// traversal responses.
func (s *Searcher) relationshipAware(ctx context.Context, seeds []vectorstore.Match, req Request) ([]Candidate, []RelationshipPath) {
	type unioned struct {
		chunk *model.Chunk
		score float64
	}

	seen := make(map[string]bool)
	union := make([]unioned, 0, len(seeds))
	for _, m := range seeds {
		union = append(union, unioned{chunk: m.Chunk, score: m.Score})
		seen[m.Chunk.ID] = true
	}

	maxHops := req.MultiHop.MaxHops
	if maxHops <= 0 {
		maxHops = 2
	}

	var allPaths []RelationshipPath
	var allGroups []graph.ContextGroup

	for _, m := range seeds {
		resp, err := s.traverser.Traverse(ctx, graph.TraverseRequest{
			FocusSymbols: []string{m.Chunk.SymbolName},
			Options: graph.TraverseOptions{
				MaxDepth:  maxHops,
				Direction: graph.DirBoth,
			},
		})
		if err != nil {
			continue
		}

		for _, p := range resp.RelationshipPaths {
			allPaths = append(allPaths, RelationshipPath{Symbols: p.Symbols, TotalStrength: p.TotalStrength, Description: p.Description})
		}
		allGroups = append(allGroups, resp.ContextGroups...)

		for _, id := range resp.RelatedChunks {
			if seen[id] {
				continue
			}
			seen[id] = true
			chunk, ok := s.store.Get(id)
			if !ok {
				continue
			}
			union = append(union, unioned{chunk: chunk, score: m.Score * 0.8})
		}
	}

	boost := 0.3*avgPathStrength(allPaths) + 0.2*avgGroupImportance(allGroups)

	candidates := make([]Candidate, 0, len(union))
	for _, u := range union {
		candidates = append(candidates, Candidate{Chunk: u.chunk, Score: u.score + boost, Tier: TierContextual})
	}
	return candidates, allPaths
}

func avgPathStrength(paths []RelationshipPath) float64 {
	if len(paths) == 0 {
		return 0
	}
	var sum float64
	for _, p := range paths {
		sum += p.TotalStrength
	}
	return sum / float64(len(paths))
}

func avgGroupImportance(groups []graph.ContextGroup) float64 {
	if len(groups) == 0 {
		return 0
	}
	var sum float64
	for _, g := range groups {
		sum += g.Importance
	}
	return sum / float64(len(groups))
}

// assembleContextPackage groups the final selection by tier or by file, and
// produces the summary/related-files/insights fields (spec §4.9).
func assembleContextPackage(selection Selection, mode ContextMode) ContextPackage {
	groups := groupChunks(selection.Chunks, mode)
	files := relatedFiles(selection.Chunks)

	return ContextPackage{
		Groups:       groups,
		Summary:      summarize(selection.Chunks),
		RelatedFiles: files,
		Insights:     insights(selection),
		TotalTokens:  selection.TotalTokens,
		Efficiency:   selection.BudgetUtilization,
	}
}

func groupChunks(chunks []Candidate, mode ContextMode) []ContextGroup {
	byKey := make(map[string][]string)
	var order []string

	for _, c := range chunks {
		key := string(c.Tier)
		if mode == ContextModeFile {
			key = c.Chunk.FilePath
		}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], c.Chunk.ID)
	}

	groups := make([]ContextGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, ContextGroup{Theme: key, ChunkIDs: byKey[key]})
	}
	return groups
}

func relatedFiles(chunks []Candidate) []string {
	seen := make(map[string]bool)
	var files []string
	for _, c := range chunks {
		if !seen[c.Chunk.FilePath] {
			seen[c.Chunk.FilePath] = true
			files = append(files, c.Chunk.FilePath)
		}
	}
	sort.Strings(files)
	return files
}

func summarize(chunks []Candidate) string {
	if len(chunks) == 0 {
		return "No relevant chunks found."
	}
	return fmt.Sprintf("Found %d relevant chunk(s) across %d file(s).", len(chunks), len(relatedFiles(chunks)))
}

func insights(selection Selection) []string {
	var out []string
	if selection.CriticalSetCoverage < 1.0 {
		out = append(out, fmt.Sprintf("critical set coverage dropped to %.0f%%: token budget truncated required chunks", selection.CriticalSetCoverage*100))
	}
	if selection.BudgetUtilization > 0.95 {
		out = append(out, "token budget nearly exhausted; consider a narrower query")
	}
	return out
}
