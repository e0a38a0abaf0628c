package embedpool

import "encoding/json"

// Message types exchanged over the worker's newline-delimited JSON stdio
// protocol (spec §6). Each value is marshaled as a single JSON object
// terminated by a newline; the parent buffers partial lines until it sees
// one.
const (
	MsgInit             = "init"
	MsgEmbedBatch       = "embed_batch"
	MsgEmbedBatchShared = "embed_batch_shared"
	MsgQueryMemory      = "query_memory"
	MsgShutdown         = "shutdown"

	MsgInitComplete   = "init_complete"
	MsgProgress       = "progress"
	MsgTimeoutWarning = "timeout_warning"
	MsgEmbedComplete  = "embed_complete"
	MsgSharedMemory   = "shared_memory"
	MsgMemoryResponse = "memory_response"
	MsgError          = "error"
)

// ParentMessage is any message the parent sends to a worker.
type ParentMessage struct {
	Type      string          `json:"type"`
	BatchID   string          `json:"batchId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// InitData is the payload of an init message.
type InitData struct {
	ProcessID string `json:"processId"`
}

// EmbedBatchData is the payload of an embed_batch message.
type EmbedBatchData struct {
	Texts           []string `json:"texts"`
	TimeoutWarningMs int64   `json:"timeoutWarning"`
}

// EmbedBatchSharedData is the payload of an embed_batch_shared message.
type EmbedBatchSharedData struct {
	Texts            []string `json:"texts"`
	SharedBufferKey  string   `json:"sharedBufferKey"`
	ExpectedResults  int      `json:"expectedResults"`
	EmbedDimension   int      `json:"embedDimension"`
	TimeoutWarningMs int64    `json:"timeoutWarning"`
}

// WorkerMessage is any message a worker sends to the parent.
type WorkerMessage struct {
	Type      string          `json:"type"`
	BatchID   string          `json:"batchId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
	Processed int             `json:"processed,omitempty"`
	Total     int             `json:"total,omitempty"`
	Progress  float64         `json:"progress,omitempty"`
	Message   string          `json:"message,omitempty"`

	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Partial    bool        `json:"partial,omitempty"`
	Stats      WorkerStats `json:"stats,omitempty"`

	BufferKey      string `json:"bufferKey,omitempty"`
	ResultCount    int    `json:"resultCount,omitempty"`
	EmbedDimension int    `json:"embedDimension,omitempty"`

	MemoryUsage MemoryUsage `json:"memoryUsage,omitempty"`
}

// WorkerStats accompanies embed_complete / shared_memory messages.
type WorkerStats struct {
	DurationMs int64   `json:"durationMs"`
	Throughput float64 `json:"throughput"`
	HeapUsed   int64   `json:"heapUsed"`
}

// MemoryUsage is the payload of a memory_response message.
type MemoryUsage struct {
	HeapUsedBytes  int64 `json:"heapUsedBytes"`
	HeapLimitBytes int64 `json:"heapLimitBytes"`
}
