// Package vectorstore holds the in-memory chunk map and nearest-neighbor
// query (spec §4.5). It keeps no index structure beyond the map itself;
// similarity search is a linear cosine scan, which the design explicitly
// allows substituting for an ANN index later without changing callers.
package vectorstore

import (
	"math"
	"sort"
	"sync"

	"github.com/cortexlabs/cortex-core/internal/model"
)

// Match is a similarity search hit.
type Match struct {
	Chunk *model.Chunk
	Score float64 // cosine similarity, [-1, 1]
}

// Store is a single repository's in-memory chunk map. The owning Indexer is
// its single writer (spec §5); reads may happen concurrently with writes
// under the internal mutex.
type Store struct {
	mu     sync.RWMutex
	chunks map[string]*model.Chunk
}

// New creates an empty store.
func New() *Store {
	return &Store{chunks: make(map[string]*model.Chunk)}
}

// Upsert inserts or replaces chunks by ID.
func (s *Store) Upsert(chunks []*model.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
}

// Delete removes a chunk by ID; a no-op if absent.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, id)
}

// Get returns a chunk by ID.
func (s *Store) Get(id string) (*model.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	return c, ok
}

// Len reports the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// All returns every stored chunk, for persistence (callers must not mutate
// the returned chunks).
func (s *Store) All() []*model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*model.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		all = append(all, c)
	}
	return all
}

// GetChunksByFile returns every chunk belonging to path, ordered by start
// line.
func (s *Store) GetChunksByFile(path string) []*model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*model.Chunk
	for _, c := range s.chunks {
		if c.FilePath == path {
			matches = append(matches, c)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].StartLine < matches[j].StartLine })
	return matches
}

// RelationshipKind names which relation field of a chunk to search.
type RelationshipKind string

const (
	RelationImports  RelationshipKind = "imports"
	RelationExports  RelationshipKind = "exports"
	RelationCalls    RelationshipKind = "calls"
	RelationCalledBy RelationshipKind = "called_by"
	RelationDataFlow RelationshipKind = "data_flow"
)

// FindByRelationship returns every chunk whose relation list of kind
// contains symbol.
func (s *Store) FindByRelationship(kind RelationshipKind, symbol string) []*model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*model.Chunk
	for _, c := range s.chunks {
		if containsSymbol(relationList(c, kind), symbol) {
			matches = append(matches, c)
		}
	}
	return matches
}

func relationList(c *model.Chunk, kind RelationshipKind) []string {
	switch kind {
	case RelationImports:
		return c.Imports
	case RelationExports:
		return c.Exports
	case RelationCalls:
		return c.Calls
	case RelationCalledBy:
		return c.CalledBy
	case RelationDataFlow:
		return c.DataFlow
	default:
		return nil
	}
}

func containsSymbol(list []string, symbol string) bool {
	for _, s := range list {
		if s == symbol {
			return true
		}
	}
	return false
}

// SimilaritySearch returns the top-k chunks by cosine similarity to query,
// skipping chunks without an embedding.
func (s *Store) SimilaritySearch(query []float32, k int) []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != len(query) {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: cosineSimilarity(query, c.Embedding)})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
