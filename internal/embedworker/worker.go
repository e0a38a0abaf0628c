// Package embedworker implements the worker side of the embedding pool's
// stdio protocol (spec §6): newline-delimited JSON messages in on stdin,
// replies out on stdout. internal/embedpool spawns one of these per pool
// slot; cmd/cortex-embed-worker and the "serve-embed-worker" CLI subcommand
// are both thin wrappers around Run.
package embedworker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/cortexlabs/cortex-core/internal/embedder"
	"github.com/cortexlabs/cortex-core/internal/embedpool"
)

// Run reads ParentMessages from in and writes WorkerMessages to out until
// a shutdown message arrives or in reaches EOF.
func Run(in io.Reader, out io.Writer, workerID string, emb embedder.Embedder) error {
	w := &worker{id: workerID, out: bufio.NewWriter(out), emb: emb}
	return w.run(in)
}

type worker struct {
	id  string
	mu  sync.Mutex // guards out, since a timeout_warning can race a batch's own reply
	out *bufio.Writer
	emb embedder.Embedder
}

func (w *worker) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg embedpool.ParentMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			w.writeError("", fmt.Sprintf("parse error: %v", err))
			continue
		}
		if w.handle(msg) {
			return nil
		}
	}
	return scanner.Err()
}

// handle processes one message, reporting true when the worker should exit.
func (w *worker) handle(msg embedpool.ParentMessage) bool {
	switch msg.Type {
	case embedpool.MsgInit:
		w.handleInit(msg)
	case embedpool.MsgEmbedBatch:
		w.handleEmbedBatch(msg)
	case embedpool.MsgEmbedBatchShared:
		w.handleEmbedBatchShared(msg)
	case embedpool.MsgQueryMemory:
		w.handleQueryMemory(msg)
	case embedpool.MsgShutdown:
		return true
	default:
		w.writeError(msg.BatchID, fmt.Sprintf("unknown message type %q", msg.Type))
	}
	return false
}

func (w *worker) handleInit(msg embedpool.ParentMessage) {
	var data embedpool.InitData
	_ = json.Unmarshal(msg.Data, &data)
	if data.ProcessID != "" {
		w.id = data.ProcessID
	}
	w.write(embedpool.WorkerMessage{Type: embedpool.MsgInitComplete, Success: true})
}

func (w *worker) handleEmbedBatch(msg embedpool.ParentMessage) {
	var data embedpool.EmbedBatchData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		w.writeError(msg.BatchID, fmt.Sprintf("bad embed_batch payload: %v", err))
		return
	}

	var result embedder.BatchResult
	var err error
	elapsed := w.timed(msg.BatchID, data.TimeoutWarningMs, func() {
		result, err = w.emb.EmbedBatch(context.Background(), data.Texts, embedder.Options{})
	})
	if err != nil {
		w.writeError(msg.BatchID, err.Error())
		return
	}

	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(len(data.Texts)) / elapsed.Seconds()
	}

	w.write(embedpool.WorkerMessage{
		Type:       embedpool.MsgEmbedComplete,
		BatchID:    msg.BatchID,
		Success:    true,
		Embeddings: result.Embeddings,
		Stats: embedpool.WorkerStats{
			DurationMs: elapsed.Milliseconds(),
			Throughput: throughput,
		},
	})
}

// handleEmbedBatchShared is the shared-memory transport counterpart of
// handleEmbedBatch (spec §6): instead of returning embeddings inline, it
// writes them row-major into the file at SharedBufferKey and replies with
// just the buffer's coordinates, letting the parent read the file itself.
func (w *worker) handleEmbedBatchShared(msg embedpool.ParentMessage) {
	var data embedpool.EmbedBatchSharedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		w.writeError(msg.BatchID, fmt.Sprintf("bad embed_batch_shared payload: %v", err))
		return
	}

	var result embedder.BatchResult
	var err error
	elapsed := w.timed(msg.BatchID, data.TimeoutWarningMs, func() {
		result, err = w.emb.EmbedBatch(context.Background(), data.Texts, embedder.Options{})
	})
	if err != nil {
		w.writeError(msg.BatchID, err.Error())
		return
	}

	if err := embedpool.WriteSharedBuffer(data.SharedBufferKey, result.Embeddings); err != nil {
		w.writeError(msg.BatchID, err.Error())
		return
	}

	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(len(data.Texts)) / elapsed.Seconds()
	}

	w.write(embedpool.WorkerMessage{
		Type:           embedpool.MsgSharedMemory,
		BatchID:        msg.BatchID,
		Success:        true,
		BufferKey:      data.SharedBufferKey,
		ResultCount:    len(result.Embeddings),
		EmbedDimension: data.EmbedDimension,
		Stats: embedpool.WorkerStats{
			DurationMs: elapsed.Milliseconds(),
			Throughput: throughput,
		},
	})
}

// handleQueryMemory answers a query_memory poll with this process's own
// heap usage (spec §4.4 adjustment step 1 / §5: the adaptive sizer targets
// 85% of the configured heap limit after each batch).
func (w *worker) handleQueryMemory(msg embedpool.ParentMessage) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	w.write(embedpool.WorkerMessage{
		Type:      embedpool.MsgMemoryResponse,
		RequestID: msg.RequestID,
		Success:   true,
		MemoryUsage: embedpool.MemoryUsage{
			HeapUsedBytes: int64(mem.HeapAlloc),
		},
	})
}

// timed runs fn, emitting a non-terminal timeout_warning if it is still
// running after timeoutWarningMs (spec §4.4: "at 70% of the hard timeout
// the worker is expected to emit a timeout_warning"). The caller passes the
// same fraction-of-hard-timeout value the parent sent in the request.
func (w *worker) timed(batchID string, timeoutWarningMs int64, fn func()) time.Duration {
	done := make(chan struct{})
	if timeoutWarningMs > 0 {
		go func() {
			timer := time.NewTimer(time.Duration(timeoutWarningMs) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-timer.C:
				w.write(embedpool.WorkerMessage{
					Type:    embedpool.MsgTimeoutWarning,
					BatchID: batchID,
					Message: fmt.Sprintf("batch %s still running after %dms", batchID, timeoutWarningMs),
				})
			case <-done:
			}
		}()
	}

	start := time.Now()
	fn()
	elapsed := time.Since(start)
	close(done)
	return elapsed
}

func (w *worker) writeError(batchID, errMsg string) {
	w.write(embedpool.WorkerMessage{Type: embedpool.MsgError, BatchID: batchID, Success: false, Error: errMsg})
}

func (w *worker) write(msg embedpool.WorkerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out.Write(data)
	w.out.WriteByte('\n')
	w.out.Flush()
}
