package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// Mock is a deterministic embedder for tests and for the default
// out-of-the-box configuration: embeddings are derived from a SHA-256 hash
// of the input text, so repeated calls on the same text are reproducible
// without loading a real model.
type Mock struct {
	mu         sync.Mutex
	info       ModelInfo
	embedError error
	calls      int
}

// NewMock creates a mock embedder with the given dimension.
func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = 384
	}
	return &Mock{info: ModelInfo{Name: "mock", Dimension: dimension, Tokenizer: "none"}}
}

// SetEmbedError makes subsequent EmbedBatch calls fail with err.
func (m *Mock) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedError = err
}

// Calls returns how many times EmbedBatch has been invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string, opts Options) (BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.embedError != nil {
		return BatchResult{}, m.embedError
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = deterministicVector(text, m.info.Dimension)
	}

	return BatchResult{
		Embeddings: embeddings,
		Metadata:   BatchMetadata{ModelName: m.info.Name, Dimension: m.info.Dimension},
	}, nil
}

func (m *Mock) GetModelInfo() ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

func deterministicVector(text string, dimension int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, dimension)
	for j := 0; j < dimension; j++ {
		offset := (j * 4) % len(hash)
		val := binary.BigEndian.Uint32(hash[offset : offset+4])
		vec[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
	}
	return vec
}
