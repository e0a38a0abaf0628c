// Package embedpool implements the embedding worker pool (spec §4.4): a
// fixed set of OS worker processes fronted by a shared dedup cache, an
// adaptive batch sizer, and a bounded dispatch queue whose concurrency
// equals the pool size.
package embedpool

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/cortexlabs/cortex-core/internal/corerrors"
	"github.com/cortexlabs/cortex-core/internal/logging"
)

// sharedTransportThreshold: batches with more than this many uncached
// chunks use the shared-buffer transport instead of inline JSON (spec §6).
const sharedTransportThreshold = 50

// ChunkInput is one chunk's fields needed to compute its embedding text.
type ChunkInput struct {
	Index      int // original position in the caller's slice
	SymbolName string
	Kind       string
	Content    string
	Imports    []string
}

// Result is one chunk's embedding outcome, aligned back to ChunkInput.Index.
type Result struct {
	Index     int
	Embedding []float32
	FromCache bool
	Err       error
}

// Config configures a Pool.
type Config struct {
	ProcessCount   int
	WorkerBinary   string
	Dimension      int
	CacheMaxSize   int
	HeapLimitBytes int64
}

// Pool is the embedding worker pool.
type Pool struct {
	cfg     Config
	cache   *Cache
	sizer   *AdaptiveSizer
	log     *logging.Logger
	sem     chan struct{} // bounds concurrency to len(workers)
	workers []*worker
	mu      sync.Mutex
}

// New creates and starts a Pool with cfg.ProcessCount workers (resolved to
// max(1, cores-2) when zero).
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.ProcessCount <= 0 {
		cfg.ProcessCount = resolveDefaultProcessCount()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}

	p := &Pool{
		cfg:   cfg,
		cache: NewCache(cfg.CacheMaxSize),
		sizer: NewAdaptiveSizer(cfg.HeapLimitBytes),
		log:   logging.New("embedpool"),
		sem:   make(chan struct{}, cfg.ProcessCount),
	}

	for i := 0; i < cfg.ProcessCount; i++ {
		id := fmt.Sprintf("worker-%d", i)
		w := newWorker(id, cfg.WorkerBinary)
		if err := w.start(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("embedpool: starting %s: %w", id, err)
		}
		p.workers = append(p.workers, w)
	}

	if len(p.workers) == 0 {
		return nil, corerrors.ErrNoWorkersAvailable
	}
	return p, nil
}

func resolveDefaultProcessCount() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// Embed embeds a batch of chunks, honoring the cache partition, dispatching
// only uncached entries to a worker, and reassembling results in the
// caller's original order.
func (p *Pool) Embed(ctx context.Context, batchID string, inputs []ChunkInput) ([]Result, error) {
	results := make([]Result, len(inputs))
	var uncached []ChunkInput
	keys := make([]string, len(inputs))

	for i, in := range inputs {
		text := EmbeddingText(in.SymbolName, in.Kind, in.Content, in.Imports)
		key := Fingerprint(text)
		keys[i] = key

		if emb, ok := p.cache.Get(key); ok {
			results[i] = Result{Index: in.Index, Embedding: emb, FromCache: true}
			continue
		}
		uncached = append(uncached, in)
	}

	if len(uncached) == 0 {
		return results, nil
	}

	w, err := p.acquireWorker(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release()

	texts := make([]string, len(uncached))
	for i, in := range uncached {
		texts[i] = EmbeddingText(in.SymbolName, in.Kind, in.Content, in.Imports)
	}

	start := time.Now()
	var embeddings [][]float32
	if len(uncached) > sharedTransportThreshold {
		embeddings, err = p.dispatchShared(ctx, w, batchID, texts)
	} else {
		embeddings, err = p.dispatchInline(ctx, w, batchID, texts)
	}
	duration := time.Since(start)

	if err != nil {
		p.sizer.RecordFailure(len(uncached))
		p.handleWorkerFailure(ctx, w)
		return placeholderResults(results, uncached), nil
	}

	if len(embeddings) != len(uncached) {
		return nil, fmt.Errorf("embedpool: batch %s: expected %d embeddings, got %d", batchID, len(uncached), len(embeddings))
	}

	heapUsed, memErr := w.queryMemory(ctx)
	if memErr != nil {
		p.log.Printf("memory query failed for %s: %v", w.id, memErr)
		heapUsed = 0
	}
	p.sizer.RecordSuccess(len(uncached), duration, heapUsed)

	for i, in := range uncached {
		emb := embeddings[i]
		if !validEmbedding(emb, p.cfg.Dimension) {
			results[in.Index] = Result{Index: in.Index, Err: corerrors.ErrInvalidEmbeddingDimension, Embedding: zeroVector(p.cfg.Dimension)}
			continue
		}
		key := Fingerprint(EmbeddingText(in.SymbolName, in.Kind, in.Content, in.Imports))
		p.cache.Put(key, emb)
		results[in.Index] = Result{Index: in.Index, Embedding: emb}
	}

	return results, nil
}

func placeholderResults(results []Result, uncached []ChunkInput) []Result {
	for _, in := range uncached {
		results[in.Index] = Result{Index: in.Index, Err: corerrors.ErrWorkerTimeout}
	}
	return results
}

func (p *Pool) dispatchInline(ctx context.Context, w *worker, batchID string, texts []string) ([][]float32, error) {
	reply, err := w.embedBatch(ctx, batchID, texts)
	if err != nil {
		return nil, err
	}
	if !reply.Success {
		return nil, fmt.Errorf("embedpool: worker reported failure: %s", reply.Error)
	}
	return reply.Embeddings, nil
}

// dispatchShared implements the shared-memory transport from spec §6 for
// batches above the inline threshold: the worker writes embeddings
// row-major into a buffer file instead of echoing them back inline, and
// the parent reads the file itself (embedBatchShared / ReadSharedBuffer).
func (p *Pool) dispatchShared(ctx context.Context, w *worker, batchID string, texts []string) ([][]float32, error) {
	return w.embedBatchShared(ctx, batchID, texts, p.cfg.Dimension)
}

func (p *Pool) acquireWorker(ctx context.Context) (*worker, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		if w.isReady() {
			return w, nil
		}
	}
	<-p.sem
	return nil, corerrors.ErrNoWorkersAvailable
}

func (p *Pool) release() {
	<-p.sem
}

// handleWorkerFailure marks the worker unready and restarts it with the
// same id (spec §4.4 worker lifecycle).
func (p *Pool) handleWorkerFailure(ctx context.Context, w *worker) {
	w.markUnready()
	go func() {
		restartCtx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()
		if err := w.start(restartCtx); err != nil {
			p.log.Printf("restart of %s failed: %v", w.id, err)
			return
		}
		_ = ctx // restart is independent of the failed call's context
	}()
}

func validEmbedding(v []float32, dimension int) bool {
	if len(v) != dimension {
		return false
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

func zeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

// Close drains pending dispatches and shuts down every worker: sends
// shutdown, waits shutdownGrace, then force-kills (spec §5 pool shutdown).
func (p *Pool) Close() error {
	// Drain: take every dispatch slot, so in-flight Embed calls finish
	// before any worker is stopped; the slots are handed back on return.
	for i := 0; i < cap(p.sem); i++ {
		p.sem <- struct{}{}
	}
	defer func() {
		for i := 0; i < cap(p.sem); i++ {
			<-p.sem
		}
	}()

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	var firstErr error
	for _, w := range workers {
		if err := w.stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.cache.Clear()
	return firstErr
}

// CacheSize reports the current embedding cache size, for tests and stats.
func (p *Pool) CacheSize() int {
	return p.cache.Len()
}
