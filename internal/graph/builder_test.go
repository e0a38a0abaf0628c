package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/model"
)

func chunk(id, file, symbol string, kind model.ChunkKind) *model.Chunk {
	return &model.Chunk{ID: id, FilePath: file, SymbolName: symbol, Kind: kind}
}

func TestBuildFull_CreatesNodePerChunk(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("a.go:1", "a.go", "DoWork", model.ChunkFunction),
		chunk("b.go:1", "b.go", "Helper", model.ChunkFunction),
	}

	data, err := NewMapper().BuildFull(context.Background(), chunks)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 2)
}

func TestBuildFull_EmitsCallsEdgeForResolvedSymbol(t *testing.T) {
	caller := chunk("a.go:1", "a.go", "DoWork", model.ChunkFunction)
	caller.Calls = []string{"Helper"}
	callee := chunk("b.go:1", "b.go", "Helper", model.ChunkFunction)

	data, err := NewMapper().BuildFull(context.Background(), []*model.Chunk{caller, callee})
	require.NoError(t, err)

	require.Len(t, data.Edges, 1)
	assert.Equal(t, EdgeCalls, data.Edges[0].Type)
	assert.Equal(t, caller.ID, data.Edges[0].From)
	assert.Equal(t, callee.ID, data.Edges[0].To)
}

func TestBuildFull_UnresolvedCallIsDropped(t *testing.T) {
	caller := chunk("a.go:1", "a.go", "DoWork", model.ChunkFunction)
	caller.Calls = []string{"Nonexistent"}

	data, err := NewMapper().BuildFull(context.Background(), []*model.Chunk{caller})
	require.NoError(t, err)
	assert.Empty(t, data.Edges)
}

func TestBuildFull_CoChangeEdgeBetweenFiles(t *testing.T) {
	a := chunk("a.go:1", "a.go", "A", model.ChunkFunction)
	a.CoChange = []string{"b.go"}
	b := chunk("b.go:1", "b.go", "B", model.ChunkFunction)

	data, err := NewMapper().BuildFull(context.Background(), []*model.Chunk{a, b})
	require.NoError(t, err)

	require.Len(t, data.Edges, 1)
	assert.Equal(t, EdgeCoChange, data.Edges[0].Type)
}

func TestBuildIncremental_PreservesUnchangedFileEdges(t *testing.T) {
	caller := chunk("a.go:1", "a.go", "DoWork", model.ChunkFunction)
	caller.Calls = []string{"Helper"}
	callee := chunk("b.go:1", "b.go", "Helper", model.ChunkFunction)

	m := NewMapper()
	previous, err := m.BuildFull(context.Background(), []*model.Chunk{caller, callee})
	require.NoError(t, err)

	// b.go changes; a.go is untouched, but its edge into b.go should be
	// recomputed (not silently dropped) once the full chunk set is passed.
	updated, err := m.BuildIncremental(context.Background(), previous, []string{"b.go"}, []*model.Chunk{caller, callee})
	require.NoError(t, err)

	require.Len(t, updated.Edges, 1)
	assert.Equal(t, EdgeCalls, updated.Edges[0].Type)
}

func TestBuildIncremental_NoPreviousGraphFallsBackToFull(t *testing.T) {
	chunks := []*model.Chunk{chunk("a.go:1", "a.go", "A", model.ChunkFunction)}
	data, err := NewMapper().BuildIncremental(context.Background(), nil, nil, chunks)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 1)
}
