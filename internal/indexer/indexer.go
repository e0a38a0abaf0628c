// Package indexer orchestrates the full pipeline (spec §5): scan, chunk,
// analyze, delta, embed, persist to the vector store and relationship
// graph, and the live watch → change-processor → incremental-reindex loop.
// It is the single writer of its repository's vector store and graph.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexlabs/cortex-core/internal/analyzer"
	"github.com/cortexlabs/cortex-core/internal/chunker"
	"github.com/cortexlabs/cortex-core/internal/config"
	"github.com/cortexlabs/cortex-core/internal/delta"
	"github.com/cortexlabs/cortex-core/internal/embedder"
	"github.com/cortexlabs/cortex-core/internal/embedpool"
	"github.com/cortexlabs/cortex-core/internal/git"
	"github.com/cortexlabs/cortex-core/internal/graph"
	"github.com/cortexlabs/cortex-core/internal/logging"
	"github.com/cortexlabs/cortex-core/internal/model"
	"github.com/cortexlabs/cortex-core/internal/scanner"
	"github.com/cortexlabs/cortex-core/internal/search"
	"github.com/cortexlabs/cortex-core/internal/store"
	"github.com/cortexlabs/cortex-core/internal/vectorstore"
	"github.com/cortexlabs/cortex-core/internal/watch"
)

// Stats summarizes one indexing pass.
type Stats struct {
	FilesScanned     int
	ChunksAdded      int
	ChunksUpdated    int
	ChunksRemoved    int
	TotalChunks      int
	ProcessingTimeMs int64
}

// Indexer wires the scanner, chunker, content analyzer, embedding pool,
// vector store, relationship graph, persistent store, delta engine, and
// searcher into one repository-scoped pipeline, plus the live watch loop
// that feeds it incremental reindexes.
type Indexer struct {
	cfg     config.Config
	rootDir string

	scanner *scanner.Scanner
	chunker *chunker.Chunker
	pool    *embedpool.Pool
	vstore  *vectorstore.Store
	mapper  graph.Mapper
	gstore  graph.Storage
	travers graph.Traverser
	pstore  *store.Store
	search  *search.Searcher

	watcher   *watch.Watcher
	processor *watch.Processor
	activity  *watch.ActivityDetector

	// fileHashes is the per-file raw-content hash of everything currently
	// indexed, keyed by path (spec §4.6). It is the sole source of truth
	// delta comparisons are made against: unlike the persisted chunks'
	// content, it always matches a fresh hash of the file's bytes.
	fileHashes map[string]string

	log *logging.Logger

	mu sync.Mutex
}

// New builds an Indexer rooted at rootDir with the given config, starting
// the embedding worker pool and loading any persisted index/graph.
func New(ctx context.Context, cfg config.Config, rootDir string) (*Indexer, error) {
	gitOps := git.NewOperations()

	s, err := scanner.New(rootDir, cfg.Paths.Code, cfg.Paths.Docs, cfg.Paths.Ignore, gitOps)
	if err != nil {
		return nil, fmt.Errorf("indexer: build scanner: %w", err)
	}

	pool, err := embedpool.New(ctx, embedpool.Config{
		ProcessCount:   cfg.Embedding.ProcessCount,
		WorkerBinary:   cfg.Embedding.WorkerBinary,
		Dimension:      cfg.Embedding.Dimension,
		HeapLimitBytes: cfg.Embedding.HeapLimitBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: start embedding pool: %w", err)
	}

	vstore := vectorstore.New()
	mapper := graph.NewMapper()

	graphDir := filepath.Join(store.ResolveLocations(rootDir, cfg.Store.GlobalRoot).Local, "graph")
	gstore, err := graph.NewStorage(graphDir)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("indexer: build graph storage: %w", err)
	}

	commit := currentCommit(gitOps, rootDir)
	pstore, err := store.NewRegistry().Open(rootDir, cfg.Store.GlobalRoot, commit)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("indexer: open persistent store: %w", err)
	}

	for _, c := range pstore.Chunks() {
		vstore.Upsert([]*model.Chunk{c})
	}
	if gr := pstore.Graph(); gr != nil {
		_ = gstore.Save(gr)
	}

	travers, err := graph.NewTraverser(gstore, rootDir)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("indexer: build traverser: %w", err)
	}

	ix := &Indexer{
		cfg:        cfg,
		rootDir:    rootDir,
		scanner:    s,
		chunker:    chunker.New(chunker.Options{CodeChunkSize: cfg.Chunking.CodeChunkSize, DocChunkSize: cfg.Chunking.DocChunkSize}),
		pool:       pool,
		vstore:     vstore,
		mapper:     mapper,
		gstore:     gstore,
		travers:    travers,
		pstore:     pstore,
		fileHashes: pstore.FileHashes(),
		log:        logging.New("indexer"),
	}
	ix.search = search.New(vstore, travers, &poolEmbedder{
		pool: pool,
		info: embedder.ModelInfo{Name: cfg.Embedding.ModelName, Dimension: cfg.Embedding.Dimension},
	})

	return ix, nil
}

func currentCommit(gitOps git.Operations, rootDir string) string {
	return gitOps.GetCurrentBranch(rootDir)
}

// IndexFull scans, chunks, embeds, and persists the entire repository,
// discarding any prior chunk set.
func (ix *Indexer) IndexFull(ctx context.Context) (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()
	result, err := ix.scanner.Scan(scanner.ModeFull)
	if err != nil {
		return Stats{}, fmt.Errorf("indexer: scan: %w", err)
	}

	files := append(append([]string{}, result.CodeFiles...), result.DocFiles...)
	ix.fileHashes = make(map[string]string, len(files))
	chunks, err := ix.chunkFiles(files)
	if err != nil {
		return Stats{}, err
	}

	if err := ix.embedAndUpsert(ctx, chunks); err != nil {
		return Stats{}, err
	}

	if err := ix.rebuildGraph(ctx, nil); err != nil {
		return Stats{}, err
	}

	if err := ix.persist(); err != nil {
		return Stats{}, err
	}

	return Stats{
		FilesScanned:     len(files),
		ChunksAdded:      len(chunks),
		TotalChunks:      ix.vstore.Len(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// IndexIncremental recomputes the delta against the persisted chunk set and
// re-embeds only what changed (spec §4.6/§4.8).
func (ix *Indexer) IndexIncremental(ctx context.Context) (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()
	result, err := ix.scanner.Scan(scanner.ModeIncremental)
	if err != nil {
		return Stats{}, fmt.Errorf("indexer: scan: %w", err)
	}
	files := append(append([]string{}, result.CodeFiles...), result.DocFiles...)

	content := make(map[string][]byte, len(files))
	for _, f := range files {
		data, err := ix.scanner.Read(f)
		if err != nil {
			continue
		}
		content[f] = data
	}

	fd := delta.CalculateFileDelta(content, ix.pstore.Chunks(), ix.fileHashes, contentHash)

	for _, id := range fd.Removed {
		ix.vstore.Delete(id)
	}
	for _, path := range fd.FileChanges.Deleted {
		delete(ix.fileHashes, path)
	}

	changed := append(append([]string{}, fd.Added...), fd.Updated...)
	newChunks, err := ix.chunkFiles(changed)
	if err != nil {
		return Stats{}, err
	}

	if err := ix.embedAndUpsert(ctx, newChunks); err != nil {
		return Stats{}, err
	}

	if err := ix.rebuildGraph(ctx, changed); err != nil {
		return Stats{}, err
	}

	if err := ix.persist(); err != nil {
		return Stats{}, err
	}

	return Stats{
		FilesScanned:     len(files),
		ChunksAdded:      len(fd.Added),
		ChunksUpdated:    len(fd.Updated),
		ChunksRemoved:    len(fd.Removed),
		TotalChunks:      ix.vstore.Len(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// Search delegates to the composed Searcher.
func (ix *Indexer) Search(ctx context.Context, req search.Request) (search.Response, error) {
	return ix.search.Search(ctx, req)
}

// StartWatch wires the live change pipeline (C10) onto this indexer:
// file-system events feed a debounced, priority-ordered change processor
// that calls back into IndexIncremental per dispatched batch.
func (ix *Indexer) StartWatch(ctx context.Context) error {
	w, err := watch.New(ix.rootDir, ix.scanner)
	if err != nil {
		return fmt.Errorf("indexer: start watcher: %w", err)
	}
	ix.activity = watch.NewActivityDetector()
	ix.processor = watch.NewProcessor(ix.activity, dispatcherFunc(func(ctx context.Context, batch watch.Batch) error {
		_, err := ix.IndexIncremental(ctx)
		return err
	}))
	ix.watcher = w

	ix.watcher.Start()
	ix.processor.Start(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-ix.watcher.Events:
				if !ok {
					return
				}
				for _, ev := range batch {
					if ev.ShouldIndex {
						ix.processor.Enqueue(ev)
					}
				}
			}
		}
	}()

	return nil
}

// Close releases the embedding pool, traverser, and watch goroutines.
func (ix *Indexer) Close() error {
	if ix.watcher != nil {
		ix.watcher.Stop()
	}
	if ix.processor != nil {
		ix.processor.Stop()
	}
	if ix.travers != nil {
		_ = ix.travers.Close()
	}
	return ix.pool.Close()
}

func (ix *Indexer) chunkFiles(files []string) ([]*model.Chunk, error) {
	var out []*model.Chunk
	changes := ix.scanner.GetFileChanges(files)
	commitByPath := make(map[string]scanner.FileChange, len(changes))
	for _, c := range changes {
		commitByPath[c.Path] = c
	}

	for _, f := range files {
		content, err := ix.scanner.Read(f)
		if err != nil {
			continue
		}
		analysis := analyzer.Analyze(f, content)
		coChange := ix.scanner.GetCoChangeFiles(f)

		var commit *model.CommitInfo
		if fc, ok := commitByPath[f]; ok {
			commit = &model.CommitInfo{Hash: fc.LastCommit, Author: fc.Author, Message: fc.Message, Date: fc.Date}
		}

		chunks := ix.chunker.Chunk(f, analysis.Language, string(content), commit, coChange)
		for _, c := range chunks {
			c.Language = analysis.Language
			c.Complexity = analysis.Complexity
			c.IndexedAt = time.Now()
		}
		out = append(out, chunks...)
		ix.fileHashes[f] = contentHash(f, content)
	}
	return out, nil
}

func (ix *Indexer) embedAndUpsert(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	inputs := make([]embedpool.ChunkInput, len(chunks))
	for i, c := range chunks {
		inputs[i] = embedpool.ChunkInput{Index: i, SymbolName: c.SymbolName, Kind: string(c.Kind), Content: c.Content, Imports: c.Imports}
	}

	results, err := ix.pool.Embed(ctx, "index-"+uuid.NewString(), inputs)
	if err != nil {
		return fmt.Errorf("indexer: embed batch: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			ix.log.Printf("embedding failed for chunk %d: %v", r.Index, r.Err)
			continue
		}
		chunks[r.Index].Embedding = r.Embedding
	}
	ix.vstore.Upsert(chunks)
	return nil
}

func (ix *Indexer) rebuildGraph(ctx context.Context, changedFiles []string) error {
	all := ix.vstore.All()
	var gr *graph.GraphData
	var err error

	if changedFiles == nil {
		gr, err = ix.mapper.BuildFull(ctx, all)
	} else {
		prev, loadErr := ix.gstore.Load()
		if loadErr != nil {
			return fmt.Errorf("indexer: load previous graph: %w", loadErr)
		}
		gr, err = ix.mapper.BuildIncremental(ctx, prev, changedFiles, all)
	}
	if err != nil {
		return fmt.Errorf("indexer: build graph: %w", err)
	}

	if err := ix.gstore.Save(gr); err != nil {
		return fmt.Errorf("indexer: save graph: %w", err)
	}
	return ix.travers.Reload(ctx)
}

func (ix *Indexer) persist() error {
	modelInfo := &model.ModelInfo{Name: ix.cfg.Embedding.ModelName, Dimension: ix.cfg.Embedding.Dimension}
	gr, err := ix.gstore.Load()
	if err != nil {
		return fmt.Errorf("indexer: load graph for persist: %w", err)
	}
	chunks := ix.vstore.All()
	return ix.pstore.Save(chunks, ix.fileHashes, gr, modelInfo)
}

type dispatcherFunc func(ctx context.Context, batch watch.Batch) error

func (f dispatcherFunc) Dispatch(ctx context.Context, batch watch.Batch) error { return f(ctx, batch) }

// poolEmbedder adapts embedpool.Pool (chunk-batch oriented, cache-backed) to
// the embedder.Embedder contract the searcher needs for single-query
// embedding.
type poolEmbedder struct {
	pool *embedpool.Pool
	info embedder.ModelInfo
}

func (p *poolEmbedder) EmbedBatch(ctx context.Context, texts []string, _ embedder.Options) (embedder.BatchResult, error) {
	inputs := make([]embedpool.ChunkInput, len(texts))
	for i, t := range texts {
		inputs[i] = embedpool.ChunkInput{Index: i, Content: t}
	}
	results, err := p.pool.Embed(ctx, "query-"+uuid.NewString(), inputs)
	if err != nil {
		return embedder.BatchResult{}, err
	}
	out := make([][]float32, len(texts))
	for _, r := range results {
		if r.Err != nil {
			return embedder.BatchResult{}, r.Err
		}
		out[r.Index] = r.Embedding
	}
	return embedder.BatchResult{Embeddings: out}, nil
}

func (p *poolEmbedder) GetModelInfo() embedder.ModelInfo {
	return p.info
}
