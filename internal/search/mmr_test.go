package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexlabs/cortex-core/internal/model"
)

func cand(id string, score float64, critical bool, embedding []float32, content string) Candidate {
	return Candidate{
		Chunk:    &model.Chunk{ID: id, Content: content, Embedding: embedding},
		Score:    score,
		Critical: critical,
	}
}

func TestSelectMMR_PinsCriticalSetRegardlessOfScore(t *testing.T) {
	critical := cand("critical", 0.1, true, []float32{1, 0}, "x")
	high := cand("high", 0.9, false, []float32{1, 0}, "y")

	sel := SelectMMR([]Candidate{high, critical}, 5, 4000)

	var ids []string
	for _, c := range sel.Chunks {
		ids = append(ids, c.Chunk.ID)
	}
	assert.Contains(t, ids, "critical")
	assert.Equal(t, 1.0, sel.CriticalSetCoverage)
}

func TestSelectMMR_PenalizesRedundantCandidates(t *testing.T) {
	a := cand("a", 0.9, false, []float32{1, 0}, "aaaa")
	b := cand("b", 0.89, false, []float32{1, 0}, "bbbb") // near-duplicate of a
	c := cand("c", 0.7, false, []float32{0, 1}, "cccc")  // orthogonal, diverse

	sel := SelectMMR([]Candidate{a, b, c}, 2, 4000)

	require := func(cond bool) {
		if !cond {
			t.Fatalf("expected diverse candidate c to be preferred over redundant b")
		}
	}
	var ids []string
	for _, sc := range sel.Chunks {
		ids = append(ids, sc.Chunk.ID)
	}
	require(contains(ids, "a") && contains(ids, "c"))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestSelectMMR_RespectsTokenBudget(t *testing.T) {
	longContent := make([]byte, 4000)
	for i := range longContent {
		longContent[i] = 'x'
	}
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, cand(string(rune('a'+i)), 1.0-float64(i)*0.01, false, []float32{float32(i), 1}, string(longContent)))
	}

	sel := SelectMMR(candidates, 10, 1000)
	assert.LessOrEqual(t, sel.TotalTokens, 1000)
}

func TestDiversityScore_SingletonIsMaximallyDiverse(t *testing.T) {
	score := diversityScore([]Candidate{cand("a", 1, false, []float32{1, 0}, "x")})
	assert.Equal(t, 1.0, score)
}

func TestCosineSimilarity_OrthogonalIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}))
}
