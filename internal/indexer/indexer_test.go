package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/chunker"
	"github.com/cortexlabs/cortex-core/internal/git"
	"github.com/cortexlabs/cortex-core/internal/logging"
	"github.com/cortexlabs/cortex-core/internal/scanner"
	"github.com/cortexlabs/cortex-core/internal/watch"
)

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	s, err := scanner.New(root, []string{"**/*.go"}, []string{"**/*.md"}, nil, git.NewMockGitOps())
	require.NoError(t, err)

	return &Indexer{
		rootDir:    root,
		scanner:    s,
		chunker:    chunker.New(chunker.DefaultOptions()),
		fileHashes: make(map[string]string),
		log:        logging.New("indexer-test"),
	}
}

func TestChunkFiles_ProducesChunksWithLanguageAndTimestamp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("func main() {}\n"), 0o644))

	ix := newTestIndexer(t, root)
	chunks, err := ix.chunkFiles([]string{"main.go"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.Equal(t, "go", c.Language)
		assert.False(t, c.IndexedAt.IsZero())
		assert.Equal(t, "main.go", c.FilePath)
	}
}

func TestChunkFiles_SkipsUnreadableFile(t *testing.T) {
	root := t.TempDir()
	ix := newTestIndexer(t, root)

	chunks, err := ix.chunkFiles([]string{"missing.go"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestContentHash_IsDeterministicAndContentSensitive(t *testing.T) {
	a := contentHash("x.go", []byte("package main"))
	b := contentHash("x.go", []byte("package main"))
	c := contentHash("x.go", []byte("package other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestChunkFiles_RecordsFileHash(t *testing.T) {
	root := t.TempDir()
	content := []byte("func main() {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), content, 0o644))

	ix := newTestIndexer(t, root)
	_, err := ix.chunkFiles([]string{"main.go"})
	require.NoError(t, err)

	assert.Equal(t, contentHash("main.go", content), ix.fileHashes["main.go"])
}

func TestDispatcherFunc_InvokesUnderlyingFunction(t *testing.T) {
	called := false
	var f dispatcherFunc = func(_ context.Context, _ watch.Batch) error {
		called = true
		return nil
	}
	require.NoError(t, f.Dispatch(context.Background(), watch.Batch{}))
	assert.True(t, called)
}
