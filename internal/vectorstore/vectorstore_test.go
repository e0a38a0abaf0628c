package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/model"
)

func chunk(id, file string, embedding []float32) *model.Chunk {
	return &model.Chunk{ID: id, FilePath: file, Embedding: embedding}
}

func TestUpsertAndGet(t *testing.T) {
	s := New()
	s.Upsert([]*model.Chunk{chunk("a.go:1", "a.go", nil)})

	c, ok := s.Get("a.go:1")
	require.True(t, ok)
	assert.Equal(t, "a.go", c.FilePath)
}

func TestDelete(t *testing.T) {
	s := New()
	s.Upsert([]*model.Chunk{chunk("a.go:1", "a.go", nil)})
	s.Delete("a.go:1")

	_, ok := s.Get("a.go:1")
	assert.False(t, ok)
}

func TestGetChunksByFile_OrdersByStartLine(t *testing.T) {
	s := New()
	c1 := chunk("a.go:10", "a.go", nil)
	c1.StartLine = 10
	c2 := chunk("a.go:1", "a.go", nil)
	c2.StartLine = 1
	s.Upsert([]*model.Chunk{c1, c2})

	result := s.GetChunksByFile("a.go")
	require.Len(t, result, 2)
	assert.Equal(t, 1, result[0].StartLine)
	assert.Equal(t, 10, result[1].StartLine)
}

func TestSimilaritySearch_RanksByCosine(t *testing.T) {
	s := New()
	s.Upsert([]*model.Chunk{
		chunk("exact", "a.go", []float32{1, 0, 0}),
		chunk("orthogonal", "b.go", []float32{0, 1, 0}),
		chunk("opposite", "c.go", []float32{-1, 0, 0}),
	})

	matches := s.SimilaritySearch([]float32{1, 0, 0}, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Chunk.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.0001)
}

func TestSimilaritySearch_SkipsMismatchedDimensions(t *testing.T) {
	s := New()
	s.Upsert([]*model.Chunk{chunk("a", "a.go", []float32{1, 2})})

	matches := s.SimilaritySearch([]float32{1, 2, 3}, 10)
	assert.Empty(t, matches)
}

func TestFindByRelationship(t *testing.T) {
	s := New()
	c := chunk("a.go:1", "a.go", nil)
	c.Calls = []string{"doWork"}
	s.Upsert([]*model.Chunk{c})

	matches := s.FindByRelationship(RelationCalls, "doWork")
	require.Len(t, matches, 1)
	assert.Equal(t, "a.go:1", matches[0].ID)
}
