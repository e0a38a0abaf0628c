package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTraverser(t *testing.T, data *GraphData) Traverser {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewStorage(filepath.Join(dir, "graph"))
	require.NoError(t, err)
	require.NoError(t, storage.Save(data))

	tr, err := NewTraverser(storage, dir)
	require.NoError(t, err)
	return tr
}

func sampleGraph() *GraphData {
	return &GraphData{
		Nodes: []Node{
			{ID: "a", Kind: NodeFunction, Symbol: "A", File: "a.go", StartLine: 1, EndLine: 3},
			{ID: "b", Kind: NodeFunction, Symbol: "B", File: "b.go", StartLine: 1, EndLine: 3},
			{ID: "c", Kind: NodeFunction, Symbol: "C", File: "c.go", StartLine: 1, EndLine: 3},
		},
		Edges: []Edge{
			{From: "a", To: "b", Type: EdgeCalls, Strength: 1, Confidence: 0.9, Location: &Location{File: "a.go", Line: 1}},
			{From: "b", To: "c", Type: EdgeCalls, Strength: 1, Confidence: 0.9, Location: &Location{File: "b.go", Line: 1}},
		},
	}
}

func TestTraverse_ForwardBFSFindsTransitiveNeighbor(t *testing.T) {
	tr := newTestTraverser(t, sampleGraph())

	resp, err := tr.Traverse(context.Background(), TraverseRequest{
		FocusSymbols: []string{"A"},
		Options:      TraverseOptions{MaxDepth: 2, Direction: DirForward},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, resp.PrimaryChunks)
	assert.ElementsMatch(t, []string{"b", "c"}, resp.RelatedChunks)
}

func TestTraverse_DepthOneStopsBeforeTransitive(t *testing.T) {
	tr := newTestTraverser(t, sampleGraph())

	resp, err := tr.Traverse(context.Background(), TraverseRequest{
		FocusSymbols: []string{"A"},
		Options:      TraverseOptions{MaxDepth: 1, Direction: DirForward},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, resp.RelatedChunks)
}

func TestTraverse_BackwardFollowsIncomingEdges(t *testing.T) {
	tr := newTestTraverser(t, sampleGraph())

	resp, err := tr.Traverse(context.Background(), TraverseRequest{
		FocusSymbols: []string{"C"},
		Options:      TraverseOptions{MaxDepth: 2, Direction: DirBackward},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, resp.RelatedChunks)
}

func TestTraverse_FiltersByRelationshipType(t *testing.T) {
	tr := newTestTraverser(t, sampleGraph())

	resp, err := tr.Traverse(context.Background(), TraverseRequest{
		FocusSymbols:      []string{"A"},
		RelationshipTypes: []EdgeType{EdgeImports},
		Options:           TraverseOptions{MaxDepth: 2, Direction: DirForward},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.RelatedChunks)
}

func TestTraverse_UnknownSeedReturnsEmptyResponse(t *testing.T) {
	tr := newTestTraverser(t, sampleGraph())

	resp, err := tr.Traverse(context.Background(), TraverseRequest{FocusSymbols: []string{"Nope"}})
	require.NoError(t, err)
	assert.Empty(t, resp.PrimaryChunks)
	assert.Empty(t, resp.RelatedChunks)
}

func TestTraverse_BaseQueryMatchesByFileSubstring(t *testing.T) {
	tr := newTestTraverser(t, sampleGraph())

	resp, err := tr.Traverse(context.Background(), TraverseRequest{
		BaseQuery: "a.go",
		Options:   TraverseOptions{MaxDepth: 1, Direction: DirForward},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resp.PrimaryChunks)
}
