// Package embedder defines the Embedder capability (spec §6): the external
// collaborator contract the embedding worker pool dispatches batches to.
// Concrete model backends (local model process, cloud API) are out of
// scope for the core; it depends only on this interface, and the worker
// binary built in cmd/cortex-embed-worker is one such backend.
package embedder

import "context"

// ModelInfo describes the embedding model a backend serves.
type ModelInfo struct {
	Name      string
	Dimension int
	Tokenizer string
}

// BatchMetadata carries per-batch bookkeeping returned alongside embeddings.
type BatchMetadata struct {
	ModelName string
	Dimension int
}

// PerformanceStats reports timing for a single embed call.
type PerformanceStats struct {
	DurationMs int64
	Throughput float64 // texts per second
}

// BatchResult is the outcome of a single embedBatch call.
type BatchResult struct {
	Embeddings  [][]float32
	Metadata    BatchMetadata
	Performance PerformanceStats
}

// Options configures a single embed call.
type Options struct {
	// TimeoutWarningAt is the duration after which a slow backend is
	// expected to emit a progress/warning signal; purely advisory for
	// in-process backends.
	TimeoutWarningAt int64
}

// Embedder is the capability contract any embedding backend must satisfy.
type Embedder interface {
	// EmbedBatch embeds a batch of texts in order, returning one vector per
	// text of uniform length across calls (Dimension of GetModelInfo).
	EmbedBatch(ctx context.Context, texts []string, opts Options) (BatchResult, error)

	// GetModelInfo describes the model backing this embedder.
	GetModelInfo() ModelInfo
}
