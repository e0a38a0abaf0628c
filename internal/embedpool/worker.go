package embedpool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexlabs/cortex-core/internal/corerrors"
	"github.com/cortexlabs/cortex-core/internal/logging"
)

const (
	initTimeout            = 30 * time.Second
	shutdownGrace          = 1 * time.Second
	hardBatchTimeout       = 120 * time.Second
	timeoutWarningFraction = 0.70
	memoryQueryTimeout     = 5 * time.Second
)

// worker manages one OS subprocess running the embedding model, speaking
// the newline-delimited JSON protocol over its stdin/stdout (spec §6),
// generalized from the SIGTERM-then-grace-then-kill shutdown sequence used
// for the single long-lived embedding server process elsewhere in the
// wider example pack.
type worker struct {
	id      string
	binary  string
	log     *logging.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ready   bool
	pending map[string]chan WorkerMessage

	stdoutDone chan struct{}
}

func newWorker(id, binary string) *worker {
	return &worker{
		id:      id,
		binary:  binary,
		log:     logging.New("embedpool/" + id),
		pending: make(map[string]chan WorkerMessage),
	}
}

// start launches the subprocess and performs the init handshake.
func (w *worker) start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.binary, "--worker-id", w.id)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("embedpool: worker %s stdin pipe: %w", w.id, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("embedpool: worker %s stdout pipe: %w", w.id, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("embedpool: worker %s start: %w", w.id, err)
	}

	w.mu.Lock()
	w.cmd = cmd
	w.stdin = stdin
	w.mu.Unlock()

	w.stdoutDone = make(chan struct{})
	go w.readLoop(stdout)

	initData, _ := json.Marshal(InitData{ProcessID: w.id})
	replyCh := w.await("", MsgInitComplete)
	if err := w.send(ParentMessage{Type: MsgInit, Data: initData}); err != nil {
		return err
	}

	select {
	case reply := <-replyCh:
		if !reply.Success {
			return fmt.Errorf("embedpool: worker %s init failed: %s", w.id, reply.Error)
		}
		w.mu.Lock()
		w.ready = true
		w.mu.Unlock()
		return nil
	case <-time.After(initTimeout):
		return fmt.Errorf("embedpool: worker %s init timed out after %s", w.id, initTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop parses one JSON message per line and routes it to whoever is
// awaiting that batch/request id, or to the catch-all "" key used for init.
func (w *worker) readLoop(stdout io.Reader) {
	defer close(w.stdoutDone)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg WorkerMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			w.log.Printf("transport parse error: %v", err)
			continue
		}
		w.deliver(msg)
	}
}

func (w *worker) deliver(msg WorkerMessage) {
	key := msg.BatchID
	if key == "" {
		key = msg.RequestID
	}

	w.mu.Lock()
	ch, ok := w.pending[key]
	w.mu.Unlock()
	if !ok {
		return
	}

	// progress/timeout_warning messages don't complete the wait; only
	// terminal message types do.
	switch msg.Type {
	case MsgProgress, MsgTimeoutWarning:
		w.log.Printf("batch %s: %s", msg.BatchID, msg.Message)
		return
	}

	select {
	case ch <- msg:
	default:
	}
}

// await registers interest in the terminal message for batchID/requestID,
// returning a channel that receives exactly one WorkerMessage.
func (w *worker) await(batchID, _terminalType string) chan WorkerMessage {
	ch := make(chan WorkerMessage, 1)
	w.mu.Lock()
	w.pending[batchID] = ch
	w.mu.Unlock()
	return ch
}

func (w *worker) forget(batchID string) {
	w.mu.Lock()
	delete(w.pending, batchID)
	w.mu.Unlock()
}

func (w *worker) send(msg ParentMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("embedpool: marshal message: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	stdin := w.stdin
	w.mu.Unlock()
	if stdin == nil {
		return corerrors.ErrWorkerCrashed
	}
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("%w: %v", corerrors.ErrWorkerCrashed, err)
	}
	return nil
}

func (w *worker) isReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

func (w *worker) markUnready() {
	w.mu.Lock()
	w.ready = false
	w.mu.Unlock()
}

// embedBatch dispatches texts to the worker and blocks for a reply or the
// hard batch timeout, whichever comes first.
func (w *worker) embedBatch(ctx context.Context, batchID string, texts []string) (WorkerMessage, error) {
	data, _ := json.Marshal(EmbedBatchData{
		Texts:            texts,
		TimeoutWarningMs: int64(hardBatchTimeout.Seconds() * timeoutWarningFraction * 1000),
	})

	replyCh := w.await(batchID, MsgEmbedComplete)
	defer w.forget(batchID)

	if err := w.send(ParentMessage{Type: MsgEmbedBatch, BatchID: batchID, Data: data}); err != nil {
		return WorkerMessage{}, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(hardBatchTimeout):
		return WorkerMessage{}, corerrors.ErrWorkerTimeout
	case <-ctx.Done():
		return WorkerMessage{}, ctx.Err()
	}
}

// embedBatchShared dispatches texts over the shared-memory transport (spec
// §6): the parent creates the buffer file, hands the worker its path, and
// the worker writes embeddings into it directly instead of echoing them
// back inline. The reply only carries the buffer's coordinates.
func (w *worker) embedBatchShared(ctx context.Context, batchID string, texts []string, dimension int) ([][]float32, error) {
	tmp, err := os.CreateTemp("", "cortex-embed-shared-*.bin")
	if err != nil {
		return nil, fmt.Errorf("embedpool: create shared buffer: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	data, _ := json.Marshal(EmbedBatchSharedData{
		Texts:            texts,
		SharedBufferKey:  path,
		ExpectedResults:  len(texts),
		EmbedDimension:   dimension,
		TimeoutWarningMs: int64(hardBatchTimeout.Seconds() * timeoutWarningFraction * 1000),
	})

	replyCh := w.await(batchID, MsgSharedMemory)
	defer w.forget(batchID)

	if err := w.send(ParentMessage{Type: MsgEmbedBatchShared, BatchID: batchID, Data: data}); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		if !reply.Success {
			return nil, fmt.Errorf("embedpool: worker reported failure: %s", reply.Error)
		}
		return ReadSharedBuffer(reply.BufferKey, reply.ResultCount, reply.EmbedDimension)
	case <-time.After(hardBatchTimeout):
		return nil, corerrors.ErrWorkerTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// queryMemory polls the worker for its current heap usage (spec §4.4
// adjustment step 1), so the adaptive sizer can back off under real memory
// pressure instead of a hardcoded zero.
func (w *worker) queryMemory(ctx context.Context) (int64, error) {
	reqID := "mem-" + uuid.NewString()
	replyCh := w.await(reqID, MsgMemoryResponse)
	defer w.forget(reqID)

	if err := w.send(ParentMessage{Type: MsgQueryMemory, RequestID: reqID}); err != nil {
		return 0, err
	}

	select {
	case reply := <-replyCh:
		if !reply.Success {
			return 0, fmt.Errorf("embedpool: worker reported failure: %s", reply.Error)
		}
		return reply.MemoryUsage.HeapUsedBytes, nil
	case <-time.After(memoryQueryTimeout):
		return 0, corerrors.ErrWorkerTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// stop sends shutdown, waits up to shutdownGrace, then kills.
func (w *worker) stop() error {
	w.mu.Lock()
	cmd := w.cmd
	w.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = w.send(ParentMessage{Type: MsgShutdown})

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(shutdownGrace):
		return cmd.Process.Kill()
	}
}
