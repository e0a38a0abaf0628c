// Package corerrors holds the sentinel error kinds from spec §7's taxonomy.
// Components wrap these with fmt.Errorf("...: %w", ...) rather than define
// their own parallel error types, so callers can keep using errors.Is.
package corerrors

import "errors"

var (
	// ErrForcedRebuildRequired is returned when a persisted index's schema
	// version is incompatible with the current reader.
	ErrForcedRebuildRequired = errors.New("cortex: index schema incompatible, full rebuild required")

	// ErrNoWorkersAvailable is returned when the embedding pool has no
	// ready worker to dispatch a batch to.
	ErrNoWorkersAvailable = errors.New("cortex: no embedding workers available")

	// ErrWorkerTimeout is returned when a dispatched batch exceeds its
	// hard timeout without a response.
	ErrWorkerTimeout = errors.New("cortex: embedding worker timed out")

	// ErrWorkerCrashed is returned when a worker process exits unexpectedly
	// while tasks are pending.
	ErrWorkerCrashed = errors.New("cortex: embedding worker crashed")

	// ErrInvalidEmbeddingDimension is returned when a worker's result
	// vector length doesn't match the model's declared dimension.
	ErrInvalidEmbeddingDimension = errors.New("cortex: invalid embedding dimension")

	// ErrTransportParse is returned when a worker's stdio message fails
	// to parse as the expected JSON shape.
	ErrTransportParse = errors.New("cortex: worker transport parse error")

	// ErrQueueOverflow is returned (as a counted condition, not a hard
	// failure) when the change-processor queue is at capacity.
	ErrQueueOverflow = errors.New("cortex: change queue overflow")
)
