// Package store implements the dual-tier persistent store (spec §4.7): the
// index (chunks) and the relationship graph are each mirrored to a
// repo-local location and a user-global location, written atomically
// (temp file + rename, per the teacher's metadata-cache idiom) and loaded
// with a winner-selection cascade when the two copies disagree.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cortexlabs/cortex-core/internal/corerrors"
	"github.com/cortexlabs/cortex-core/internal/graph"
	"github.com/cortexlabs/cortex-core/internal/logging"
	"github.com/cortexlabs/cortex-core/internal/model"
)

const indexFileName = "index.json"

// Locations resolves the two mirrored on-disk paths for a repository.
type Locations struct {
	Local  string // <repo>/.cortex
	Global string // ~/.claude/cortex-embeddings/<repo-name>-<hash>
}

// ResolveLocations computes the dual-tier paths for repoPath under
// globalRoot (normally "~/.claude/cortex-embeddings").
func ResolveLocations(repoPath, globalRoot string) Locations {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}
	sum := sha256.Sum256([]byte(abs))
	suffix := hex.EncodeToString(sum[:])[:16]
	name := filepath.Base(abs) + "-" + suffix

	return Locations{
		Local:  filepath.Join(repoPath, ".cortex"),
		Global: filepath.Join(globalRoot, name),
	}
}

// Registry de-duplicates Store initialization: at most one Store is loaded
// per (repository_path, index_dir) pair through a given Registry (spec
// §4.7). It replaces process-wide dedup state with an owned value passed
// into constructors; a test wanting isolation just constructs a fresh one.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Store is the in-memory index plus its persistence strategy for one
// repository. It is the single writer of its own chunks and graph; callers
// serialize through it.
type Store struct {
	mu   sync.RWMutex
	loc  Locations
	log  *logging.Logger
	data *model.PersistedIndex
	gr   *graph.GraphData
}

// Open loads or creates a Store for repoPath, returning the instance this
// registry already tracks for the same key if one exists.
func (r *Registry) Open(repoPath, globalRoot, repositoryCommit string) (*Store, error) {
	loc := ResolveLocations(repoPath, globalRoot)
	key := loc.Local + "|" + loc.Global

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.stores[key]; ok {
		return existing, nil
	}

	s := &Store{loc: loc, log: logging.New("store")}
	if err := s.load(repositoryCommit); err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}

func (s *Store) localIndexPath() string  { return filepath.Join(s.loc.Local, indexFileName) }
func (s *Store) globalIndexPath() string { return filepath.Join(s.loc.Global, indexFileName) }

// load runs the winner-selection cascade (spec §4.7) and schedules a
// background sync of the losing side once the winner is known.
func (s *Store) load(repositoryCommit string) error {
	local, localErr := readIndex(s.localIndexPath())
	global, globalErr := readIndex(s.globalIndexPath())
	localExists := localErr == nil
	globalExists := globalErr == nil

	var winner *model.PersistedIndex
	var syncTarget string // "local" or "global": the side to background-sync from winner

	switch {
	case !localExists && !globalExists:
		winner = emptyIndex()
	case localExists && !globalExists:
		winner = local
		syncTarget = "global"
	case !localExists && globalExists:
		winner = global
		syncTarget = "local"
	default:
		winner, syncTarget = selectWinner(local, global, repositoryCommit)
	}

	if winner.SchemaVersion != 0 && winner.SchemaVersion != model.CurrentSchemaVersion {
		return fmt.Errorf("store: %w: on-disk schema %d, expected %d", corerrors.ErrForcedRebuildRequired, winner.SchemaVersion, model.CurrentSchemaVersion)
	}

	s.data = winner

	g, err := readGraph(s.graphDirFor(syncTarget != "local"))
	if err == nil {
		s.gr = g
	}

	if syncTarget != "" {
		go s.backgroundSync(syncTarget)
	}
	return nil
}

// selectWinner implements spec §4.7 step 3's cascade when both copies exist.
func selectWinner(local, global *model.PersistedIndex, repositoryCommit string) (*model.PersistedIndex, string) {
	localTime := time.UnixMilli(local.Timestamp)
	globalTime := time.UnixMilli(global.Timestamp)
	delta := localTime.Sub(globalTime)
	if delta < 0 {
		delta = -delta
	}
	if delta < time.Second {
		return local, "global"
	}

	if len(local.Chunks) == 0 && len(global.Chunks) > 0 {
		return global, "local"
	}
	if len(global.Chunks) == 0 && len(local.Chunks) > 0 {
		return local, "global"
	}

	localMatches := repositoryCommit != "" && local.Metadata.EmbeddingModel == repositoryCommit
	globalMatches := repositoryCommit != "" && global.Metadata.EmbeddingModel == repositoryCommit
	if localMatches && !globalMatches {
		return local, "global"
	}
	if globalMatches && !localMatches {
		return global, "local"
	}

	if len(local.Chunks) != len(global.Chunks) {
		if len(local.Chunks) > len(global.Chunks) {
			return local, "global"
		}
		return global, "local"
	}

	if localTime.After(globalTime) {
		return local, "global"
	}
	return global, "local"
}

func (s *Store) backgroundSync(target string) {
	s.mu.RLock()
	data := s.data
	gr := s.gr
	s.mu.RUnlock()

	var path string
	if target == "local" {
		path = s.localIndexPath()
	} else {
		path = s.globalIndexPath()
	}
	if err := writeIndexAtomic(path, data); err != nil {
		s.log.Printf("background sync of %s failed: %v", target, err)
	}
	if gr != nil {
		if err := writeGraphAtomic(s.graphDirFor(target == "local"), gr); err != nil {
			s.log.Printf("background graph sync of %s failed: %v", target, err)
		}
	}
}

func (s *Store) graphDirFor(local bool) string {
	if local {
		return s.loc.Local
	}
	return s.loc.Global
}

// Chunks returns the currently loaded chunk set.
func (s *Store) Chunks() []*model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Chunks
}

// FileHashes returns the per-file content hashes recorded at the last Save,
// keyed by repository-relative path. Callers use this as the baseline for
// detecting which files changed since that save.
func (s *Store) FileHashes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data.FileHashes))
	for k, v := range s.data.FileHashes {
		out[k] = v
	}
	return out
}

// Graph returns the currently loaded relationship graph, or nil if none.
func (s *Store) Graph() *graph.GraphData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gr
}

// Save persists chunks and graph to both tiers concurrently (spec §4.7:
// "writes to both locations are issued concurrently").
func (s *Store) Save(chunks []*model.Chunk, fileHashes map[string]string, gr *graph.GraphData, modelInfo *model.ModelInfo) error {
	s.mu.Lock()
	s.data = &model.PersistedIndex{
		Version:        "1.0",
		SchemaVersion:  model.CurrentSchemaVersion,
		Timestamp:      time.Now().UnixMilli(),
		RepositoryPath: s.loc.Local,
		Chunks:         chunks,
		FileHashes:     fileHashes,
		Metadata: model.IndexMetadata{
			TotalChunks:    len(chunks),
			LastIndexed:    time.Now(),
			EmbeddingModel: modelInfoName(modelInfo),
			ModelInfo:      modelInfo,
		},
	}
	s.gr = gr
	data := s.data
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		if err := writeIndexAtomic(s.localIndexPath(), data); err != nil {
			return err
		}
		if gr != nil {
			return writeGraphAtomic(s.loc.Local, gr)
		}
		return nil
	})
	g.Go(func() error {
		if err := writeIndexAtomic(s.globalIndexPath(), data); err != nil {
			return err
		}
		if gr != nil {
			return writeGraphAtomic(s.loc.Global, gr)
		}
		return nil
	})
	return g.Wait()
}

func modelInfoName(m *model.ModelInfo) string {
	if m == nil {
		return ""
	}
	return m.Name
}

func emptyIndex() *model.PersistedIndex {
	return &model.PersistedIndex{SchemaVersion: model.CurrentSchemaVersion, Chunks: []*model.Chunk{}}
}

func readIndex(path string) (*model.PersistedIndex, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx model.PersistedIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", path, err)
	}
	return &idx, nil
}

func writeIndexAtomic(path string, data *model.PersistedIndex) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("store: creating directory for %s: %w", path, err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshaling index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("store: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: renaming %s: %w", tmp, err)
	}
	return nil
}

func readGraph(dir string) (*graph.GraphData, error) {
	storage, err := graph.NewStorage(dir)
	if err != nil {
		return nil, err
	}
	return storage.Load()
}

func writeGraphAtomic(dir string, gr *graph.GraphData) error {
	storage, err := graph.NewStorage(dir)
	if err != nil {
		return err
	}
	return storage.Save(gr)
}
