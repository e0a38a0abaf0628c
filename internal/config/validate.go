package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDimensions indicates invalid embedding dimensions
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrInvalidChunkSize indicates invalid chunk size configuration
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrEmptyModel indicates missing embedding model name
	ErrEmptyModel = errors.New("empty embedding model")

	// ErrInvalidQueueSize indicates an invalid change-queue configuration
	ErrInvalidQueueSize = errors.New("invalid change queue size")

	// ErrInvalidConcurrency indicates an invalid concurrency setting
	ErrInvalidConcurrency = errors.New("invalid concurrency setting")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateEmbedding(&cfg.Embedding); err != nil {
		errs = append(errs, err)
	}
	if err := validateChunking(&cfg.Chunking); err != nil {
		errs = append(errs, err)
	}
	if err := validateChange(&cfg.Change); err != nil {
		errs = append(errs, err)
	}
	if err := validateLive(&cfg.Live); err != nil {
		errs = append(errs, err)
	}

	return joinErrors(errs)
}

func validateEmbedding(cfg *EmbeddingConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.ModelName) == "" {
		errs = append(errs, fmt.Errorf("%w: model_name is required", ErrEmptyModel))
	}
	if cfg.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidDimensions, cfg.Dimension))
	}
	if cfg.ProcessCount < 0 {
		errs = append(errs, fmt.Errorf("%w: process_count cannot be negative", ErrInvalidConcurrency))
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidChunkSize, cfg.BatchSize))
	}
	if cfg.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("invalid embedding timeout: must be positive, got %d", cfg.TimeoutMs))
	}

	return joinErrors(errs)
}

func validateChunking(cfg *ChunkingConfig) error {
	var errs []error

	if cfg.DocChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: doc_chunk_size must be positive, got %d", ErrInvalidChunkSize, cfg.DocChunkSize))
	}
	if cfg.CodeChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: code_chunk_size must be positive, got %d", ErrInvalidChunkSize, cfg.CodeChunkSize))
	}

	return joinErrors(errs)
}

func validateChange(cfg *ChangeConfig) error {
	var errs []error

	if cfg.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_queue_size must be positive, got %d", ErrInvalidQueueSize, cfg.MaxQueueSize))
	}
	if cfg.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("invalid debounce_ms: cannot be negative, got %d", cfg.DebounceMs))
	}

	return joinErrors(errs)
}

func validateLive(cfg *LiveConfig) error {
	var errs []error

	if cfg.MaxConcurrentFiles <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_concurrent_files must be positive, got %d", ErrInvalidConcurrency, cfg.MaxConcurrentFiles))
	}
	if cfg.AnalysisThreshold < 0 || cfg.AnalysisThreshold > 100 {
		errs = append(errs, fmt.Errorf("invalid analysis_threshold: must be in [0,100], got %d", cfg.AnalysisThreshold))
	}

	return joinErrors(errs)
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
