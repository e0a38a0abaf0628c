package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/model"
	"github.com/cortexlabs/cortex-core/internal/scanner"
)

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	s, err := scanner.New(root, []string{"**/*.go"}, []string{"**/*.md"}, []string{"**/.git/**"}, nil)
	require.NoError(t, err)

	w, err := New(root, s)
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w
}

func waitForBatch(t *testing.T, w *Watcher) []model.ChangeEvent {
	t.Helper()
	select {
	case batch := <-w.Events:
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestWatcher_EmitsBatchOnFileWrite(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	w.Start()

	path := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	// Writing a new file raises Create then Write; the watcher keeps only
	// the latest event per path, so the batch carries the Write as a change.
	batch := waitForBatch(t, w)
	require.Len(t, batch, 1)
	require.Equal(t, "main.go", batch[0].RelativePath)
	require.Equal(t, model.ChangeUpdate, batch[0].Kind)
	require.NotNil(t, batch[0].ContentAnalysis)
}

func TestWatcher_IgnoresUntrackedExtension(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(root, "data.bin"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tracked.go"), []byte("package main\n"), 0o644))

	batch := waitForBatch(t, w)
	require.Len(t, batch, 1)
	require.Equal(t, "tracked.go", batch[0].RelativePath)
}

func TestWatcher_CollapsesRapidEditsToOneBatch(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	w.Start()

	path := filepath.Join(root, "hot.go")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	batch := waitForBatch(t, w)
	require.Len(t, batch, 1)

	select {
	case extra := <-w.Events:
		t.Fatalf("expected exactly one batch, got a second with %d events", len(extra))
	case <-time.After(700 * time.Millisecond):
	}
}

func TestWatcher_UnlinkEventIsMarkedRemoved(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	w := newTestWatcher(t, root)
	w.Start()

	require.NoError(t, os.Remove(path))

	batch := waitForBatch(t, w)
	require.Len(t, batch, 1)
	require.Equal(t, model.ChangeUnlink, batch[0].Kind)
}
