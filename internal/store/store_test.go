package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/corerrors"
	"github.com/cortexlabs/cortex-core/internal/model"
)

func TestOpen_EmptyWhenNeitherLocationExists(t *testing.T) {
	reg := NewRegistry()
	repo := t.TempDir()
	global := t.TempDir()

	s, err := reg.Open(repo, global, "")
	require.NoError(t, err)
	assert.Empty(t, s.Chunks())
}

func TestOpen_ReturnsSameInstanceForSameKey(t *testing.T) {
	reg := NewRegistry()
	repo := t.TempDir()
	global := t.TempDir()

	a, err := reg.Open(repo, global, "")
	require.NoError(t, err)
	b, err := reg.Open(repo, global, "")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestSaveThenOpen_LoadsLocalWhenTimestampsAgree(t *testing.T) {
	repo := t.TempDir()
	global := t.TempDir()

	s, err := NewRegistry().Open(repo, global, "")
	require.NoError(t, err)
	chunks := []*model.Chunk{{ID: "a", FilePath: "a.go"}}
	require.NoError(t, s.Save(chunks, nil, nil, nil))

	reopened, err := NewRegistry().Open(repo, global, "")
	require.NoError(t, err)
	require.Len(t, reopened.Chunks(), 1)
	assert.Equal(t, "a", reopened.Chunks()[0].ID)
}

func TestLoad_RejectsIncompatibleSchemaVersion(t *testing.T) {
	repo := t.TempDir()
	global := t.TempDir()

	idx := &model.PersistedIndex{SchemaVersion: model.CurrentSchemaVersion + 1}
	require.NoError(t, writeIndexAtomic(filepath.Join(repo, ".cortex", indexFileName), idx))

	_, err := NewRegistry().Open(repo, global, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, corerrors.ErrForcedRebuildRequired))
}

func TestSelectWinner_PrefersNonEmptySide(t *testing.T) {
	now := time.Now()
	local := &model.PersistedIndex{Timestamp: now.Add(-time.Hour).UnixMilli(), Chunks: nil}
	global := &model.PersistedIndex{Timestamp: now.UnixMilli(), Chunks: []*model.Chunk{{ID: "x"}}}

	winner, sync := selectWinner(local, global, "")
	assert.Same(t, global, winner)
	assert.Equal(t, "local", sync)
}

func TestSelectWinner_PrefersMoreChunksWhenAmbiguous(t *testing.T) {
	now := time.Now()
	local := &model.PersistedIndex{Timestamp: now.Add(-time.Hour).UnixMilli(), Chunks: []*model.Chunk{{ID: "a"}}}
	global := &model.PersistedIndex{Timestamp: now.UnixMilli(), Chunks: []*model.Chunk{{ID: "a"}, {ID: "b"}}}

	winner, _ := selectWinner(local, global, "")
	assert.Same(t, global, winner)
}

func TestResolveLocations_GlobalNameIncludesHashSuffix(t *testing.T) {
	loc := ResolveLocations("/tmp/my-repo", "/home/user/.claude/cortex-embeddings")
	assert.Contains(t, loc.Global, "my-repo-")
	assert.Equal(t, filepath.Join("/tmp/my-repo", ".cortex"), loc.Local)
}
