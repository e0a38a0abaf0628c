package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CORTEX_*)
// 2. Config file (.cortex/config.yml or .cortex/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".cortex")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("CORTEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvs(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("embedding.process_count")
	_ = v.BindEnv("embedding.batch_size")
	_ = v.BindEnv("embedding.timeout_ms")
	_ = v.BindEnv("embedding.worker_binary")
	_ = v.BindEnv("embedding.dimension")
	_ = v.BindEnv("embedding.model_name")
	_ = v.BindEnv("embedding.heap_limit_bytes")

	_ = v.BindEnv("change.debounce_ms")
	_ = v.BindEnv("change.batch_size")
	_ = v.BindEnv("change.max_queue_size")

	_ = v.BindEnv("live.enable_content_analysis")
	_ = v.BindEnv("live.analysis_threshold")
	_ = v.BindEnv("live.debounce_ms")
	_ = v.BindEnv("live.batch_size")
	_ = v.BindEnv("live.max_concurrent_files")
	_ = v.BindEnv("live.suspend_on_high_activity")

	_ = v.BindEnv("staging.include_untracked_files")
	_ = v.BindEnv("staging.max_untracked_files")
	_ = v.BindEnv("staging.max_file_size_kb")

	_ = v.BindEnv("chunking.doc_chunk_size")
	_ = v.BindEnv("chunking.code_chunk_size")

	_ = v.BindEnv("store.global_root")
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("embedding.process_count", d.Embedding.ProcessCount)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.timeout_ms", d.Embedding.TimeoutMs)
	v.SetDefault("embedding.worker_binary", d.Embedding.WorkerBinary)
	v.SetDefault("embedding.dimension", d.Embedding.Dimension)
	v.SetDefault("embedding.model_name", d.Embedding.ModelName)
	v.SetDefault("embedding.heap_limit_bytes", d.Embedding.HeapLimitBytes)

	v.SetDefault("change.debounce_ms", d.Change.DebounceMs)
	v.SetDefault("change.batch_size", d.Change.BatchSize)
	v.SetDefault("change.max_queue_size", d.Change.MaxQueueSize)
	v.SetDefault("change.priority_weights.critical", d.Change.PriorityWeights.Critical)
	v.SetDefault("change.priority_weights.high", d.Change.PriorityWeights.High)
	v.SetDefault("change.priority_weights.medium", d.Change.PriorityWeights.Medium)
	v.SetDefault("change.priority_weights.low", d.Change.PriorityWeights.Low)

	v.SetDefault("live.enable_content_analysis", d.Live.EnableContentAnalysis)
	v.SetDefault("live.analysis_threshold", d.Live.AnalysisThreshold)
	v.SetDefault("live.debounce_ms", d.Live.DebounceMs)
	v.SetDefault("live.batch_size", d.Live.BatchSize)
	v.SetDefault("live.max_concurrent_files", d.Live.MaxConcurrentFiles)
	v.SetDefault("live.suspend_on_high_activity", d.Live.SuspendOnHighActivity)

	v.SetDefault("staging.include_untracked_files", d.Staging.IncludeUntrackedFiles)
	v.SetDefault("staging.max_untracked_files", d.Staging.MaxUntrackedFiles)
	v.SetDefault("staging.max_file_size_kb", d.Staging.MaxFileSizeKB)
	v.SetDefault("staging.exclude_patterns", d.Staging.ExcludePatterns)

	v.SetDefault("paths.code", d.Paths.Code)
	v.SetDefault("paths.docs", d.Paths.Docs)
	v.SetDefault("paths.ignore", d.Paths.Ignore)

	v.SetDefault("chunking.doc_chunk_size", d.Chunking.DocChunkSize)
	v.SetDefault("chunking.code_chunk_size", d.Chunking.CodeChunkSize)

	v.SetDefault("store.global_root", d.Store.GlobalRoot)
}

// LoadConfig is a convenience function that creates a loader and loads config
// from the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
