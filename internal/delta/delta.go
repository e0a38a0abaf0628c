// Package delta computes what changed between a repository's current files
// and a previously persisted chunk set (spec §4.6), so the indexer can
// re-embed only what actually needs it.
package delta

import "github.com/cortexlabs/cortex-core/internal/model"

// FileChanges summarizes which files were added, modified, or deleted.
type FileChanges struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// FileDelta is calculateFileDelta's result (spec §4.6).
type FileDelta struct {
	Added       []string
	Updated     []string
	Removed     []string
	FileChanges FileChanges
}

// HashCalculator computes the content hash delta engine compares against
// stored chunk hashes; callers supply the file's live content.
type HashCalculator func(filePath string, content []byte) string

// CalculateFileDelta compares files (path -> live content) against the
// chunks currently persisted for the repository, using persistedHashes (the
// caller's last-seen hash of each file's raw content, keyed by path) as the
// source of truth for "did this file change" — never the persisted chunks'
// own content, which does not round-trip to the original bytes (chunking
// drops inter-chunk gaps and trailing newlines). If no persisted chunks
// exist for a path, it's added. If chunks exist but no hash was recorded
// for the path (e.g. an older index), the file is reprocessed defensively
// as modified. Otherwise a hash mismatch marks every persisted chunk id for
// that file removed and the file modified. Paths present in the persisted
// set but absent from files are deleted, and their chunks removed.
func CalculateFileDelta(files map[string][]byte, persisted []*model.Chunk, persistedHashes map[string]string, hash HashCalculator) FileDelta {
	byFile := make(map[string][]*model.Chunk)
	for _, c := range persisted {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	var delta FileDelta
	seen := make(map[string]bool, len(files))

	for path, content := range files {
		seen[path] = true
		stored, exists := byFile[path]

		if !exists || len(stored) == 0 {
			delta.Added = append(delta.Added, path)
			delta.FileChanges.Added = append(delta.FileChanges.Added, path)
			continue
		}

		if storedHash, ok := persistedHashes[path]; ok && storedHash == hash(path, content) {
			continue
		}

		for _, c := range stored {
			delta.Removed = append(delta.Removed, c.ID)
		}
		delta.Updated = append(delta.Updated, path)
		delta.FileChanges.Modified = append(delta.FileChanges.Modified, path)
	}

	for path, chunks := range byFile {
		if seen[path] {
			continue
		}
		for _, c := range chunks {
			delta.Removed = append(delta.Removed, c.ID)
		}
		delta.FileChanges.Deleted = append(delta.FileChanges.Deleted, path)
	}

	return delta
}

// ChunkComparison is compareChunks' result: which chunks to keep (inheriting
// their prior embedding), which are new, and which are now orphaned.
type ChunkComparison struct {
	ToKeep   []*model.Chunk // new chunk with old embedding spliced in
	ToAdd    []*model.Chunk
	ToRemove []string // old chunk ids with no surviving content hash
}

// CompareChunks implements content-hash-based chunk reuse (spec §4.6): a new
// chunk whose ContentHash matches an old chunk inherits that chunk's
// embedding instead of being re-embedded.
func CompareChunks(old, new []*model.Chunk) ChunkComparison {
	oldByHash := make(map[string]*model.Chunk, len(old))
	for _, c := range old {
		oldByHash[c.ContentHash] = c
	}

	var result ChunkComparison
	matchedHashes := make(map[string]bool, len(new))

	for _, c := range new {
		if prior, ok := oldByHash[c.ContentHash]; ok {
			kept := c.Clone()
			kept.Embedding = prior.Embedding
			result.ToKeep = append(result.ToKeep, kept)
			matchedHashes[c.ContentHash] = true
			continue
		}
		result.ToAdd = append(result.ToAdd, c)
	}

	for hash, c := range oldByHash {
		if !matchedHashes[hash] {
			result.ToRemove = append(result.ToRemove, c.ID)
		}
	}

	return result
}
