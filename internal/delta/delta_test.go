package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexlabs/cortex-core/internal/model"
)

func sha(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func testHash(_ string, content []byte) string { return sha(content) }

func TestCalculateFileDelta_NewFileIsAdded(t *testing.T) {
	files := map[string][]byte{"a.go": []byte("package a")}
	d := CalculateFileDelta(files, nil, nil, testHash)

	assert.Equal(t, []string{"a.go"}, d.Added)
	assert.Empty(t, d.Updated)
}

func TestCalculateFileDelta_UnchangedFileProducesNoDelta(t *testing.T) {
	// The file's raw content spans two chunks; chunking drops the blank
	// line between them, so a chunk-content hash would never match the
	// live file hash even though nothing changed. persistedHashes must be
	// keyed on the file's raw content, not its chunks' content, for this
	// to produce no delta.
	rawContent := []byte("package a\n\nfunc A(){}\n")
	files := map[string][]byte{"a.go": rawContent}
	persisted := []*model.Chunk{
		{ID: "a.go:1", FilePath: "a.go", Content: "package a"},
		{ID: "a.go:2", FilePath: "a.go", Content: "func A(){}"},
	}
	persistedHashes := map[string]string{"a.go": sha(rawContent)}

	d := CalculateFileDelta(files, persisted, persistedHashes, testHash)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Updated)
	assert.Empty(t, d.Removed)
}

func TestCalculateFileDelta_ChangedContentMarksModifiedAndRemoved(t *testing.T) {
	files := map[string][]byte{"a.go": []byte("package a\nfunc B(){}")}
	persisted := []*model.Chunk{{ID: "a.go:1", FilePath: "a.go", Content: "package a"}}
	persistedHashes := map[string]string{"a.go": sha([]byte("package a"))}

	d := CalculateFileDelta(files, persisted, persistedHashes, testHash)
	assert.Equal(t, []string{"a.go"}, d.Updated)
	assert.Equal(t, []string{"a.go:1"}, d.Removed)
}

func TestCalculateFileDelta_MissingPersistedHashReprocessesAsModified(t *testing.T) {
	files := map[string][]byte{"a.go": []byte("package a")}
	persisted := []*model.Chunk{{ID: "a.go:1", FilePath: "a.go", Content: "package a"}}

	d := CalculateFileDelta(files, persisted, nil, testHash)
	assert.Equal(t, []string{"a.go"}, d.Updated)
	assert.Equal(t, []string{"a.go:1"}, d.Removed)
}

func TestCalculateFileDelta_MissingFileIsDeleted(t *testing.T) {
	persisted := []*model.Chunk{{ID: "gone.go:1", FilePath: "gone.go", Content: "x"}}
	d := CalculateFileDelta(map[string][]byte{}, persisted, nil, testHash)

	assert.Equal(t, []string{"gone.go"}, d.FileChanges.Deleted)
	assert.Equal(t, []string{"gone.go:1"}, d.Removed)
}

func TestCompareChunks_MatchingHashInheritsEmbedding(t *testing.T) {
	old := []*model.Chunk{{ID: "old:1", ContentHash: "h1", Embedding: []float32{1, 2, 3}}}
	new := []*model.Chunk{{ID: "new:1", ContentHash: "h1"}}

	result := CompareChunks(old, new)
	assert.Len(t, result.ToKeep, 1)
	assert.Equal(t, []float32{1, 2, 3}, result.ToKeep[0].Embedding)
	assert.Empty(t, result.ToAdd)
	assert.Empty(t, result.ToRemove)
}

func TestCompareChunks_NewHashGoesToAdd(t *testing.T) {
	old := []*model.Chunk{{ID: "old:1", ContentHash: "h1"}}
	new := []*model.Chunk{{ID: "new:1", ContentHash: "h2"}}

	result := CompareChunks(old, new)
	assert.Empty(t, result.ToKeep)
	assert.Len(t, result.ToAdd, 1)
	assert.Equal(t, []string{"old:1"}, result.ToRemove)
}
