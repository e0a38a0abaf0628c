// Package config loads the core's runtime configuration, generalized from
// project-cortex's internal/config package (same Config/Default shape,
// same viper-backed loader in loader.go).
package config

import "time"

// Config is the complete configuration recognized by the core (spec §6).
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Change    ChangeConfig    `yaml:"change" mapstructure:"change"`
	Live      LiveConfig      `yaml:"live" mapstructure:"live"`
	Staging   StagingConfig   `yaml:"staging" mapstructure:"staging"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
}

// EmbeddingConfig configures the embedding worker pool (spec §6).
type EmbeddingConfig struct {
	ProcessCount   int           `yaml:"process_count" mapstructure:"process_count"`
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutMs      int           `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	WorkerBinary   string        `yaml:"worker_binary" mapstructure:"worker_binary"`
	Dimension      int           `yaml:"dimension" mapstructure:"dimension"`
	ModelName      string        `yaml:"model_name" mapstructure:"model_name"`
	HeapLimitBytes int64         `yaml:"heap_limit_bytes" mapstructure:"heap_limit_bytes"`
	InitTimeout    time.Duration `yaml:"-" mapstructure:"-"`
}

// ChangeConfig configures the live change processor (spec §6).
type ChangeConfig struct {
	DebounceMs      int             `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	BatchSize       int             `yaml:"batch_size" mapstructure:"batch_size"`
	MaxQueueSize    int             `yaml:"max_queue_size" mapstructure:"max_queue_size"`
	PriorityWeights PriorityWeights `yaml:"priority_weights" mapstructure:"priority_weights"`
}

// PriorityWeights assigns an importance weight per indexing priority.
type PriorityWeights struct {
	Critical float64 `yaml:"critical" mapstructure:"critical"`
	High     float64 `yaml:"high" mapstructure:"high"`
	Medium   float64 `yaml:"medium" mapstructure:"medium"`
	Low      float64 `yaml:"low" mapstructure:"low"`
}

// LiveConfig configures the live indexer pipeline (spec §6).
type LiveConfig struct {
	EnableContentAnalysis bool `yaml:"enable_content_analysis" mapstructure:"enable_content_analysis"`
	AnalysisThreshold     int  `yaml:"analysis_threshold" mapstructure:"analysis_threshold"`
	DebounceMs            int  `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	BatchSize             int  `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrentFiles    int  `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
	SuspendOnHighActivity bool `yaml:"suspend_on_high_activity" mapstructure:"suspend_on_high_activity"`
}

// StagingConfig configures repository file discovery (spec §6).
type StagingConfig struct {
	IncludeUntrackedFiles bool     `yaml:"include_untracked_files" mapstructure:"include_untracked_files"`
	MaxUntrackedFiles     int      `yaml:"max_untracked_files" mapstructure:"max_untracked_files"`
	MaxFileSizeKB         int      `yaml:"max_file_size_kb" mapstructure:"max_file_size_kb"`
	ExcludePatterns       []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
}

// PathsConfig defines which files to index and which to ignore.
type PathsConfig struct {
	Code   []string `yaml:"code" mapstructure:"code"`
	Docs   []string `yaml:"docs" mapstructure:"docs"`
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

// ChunkingConfig defines how content is chunked for indexing.
type ChunkingConfig struct {
	CodeChunkSize int `yaml:"code_chunk_size" mapstructure:"code_chunk_size"`
	DocChunkSize  int `yaml:"doc_chunk_size" mapstructure:"doc_chunk_size"`
}

// StoreConfig configures the dual-tier persistent store (spec §4.7).
type StoreConfig struct {
	GlobalRoot string `yaml:"global_root" mapstructure:"global_root"`
}

// Default returns a configuration with the defaults named throughout spec §4.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			ProcessCount:   0, // 0 means max(1, cores-2), resolved at runtime
			BatchSize:      400,
			TimeoutMs:      120_000,
			WorkerBinary:   "cortex-embed-worker",
			Dimension:      384,
			ModelName:      "bge-small-en-v1.5",
			HeapLimitBytes: 1536 * 1024 * 1024, // spec §5: adaptive sizer targets 85% of this
		},
		Change: ChangeConfig{
			DebounceMs:   500,
			BatchSize:    50,
			MaxQueueSize: 100,
			PriorityWeights: PriorityWeights{
				Critical: 1.0,
				High:     0.75,
				Medium:   0.5,
				Low:      0.25,
			},
		},
		Live: LiveConfig{
			EnableContentAnalysis: true,
			AnalysisThreshold:     30,
			DebounceMs:            500,
			BatchSize:             50,
			MaxConcurrentFiles:    5,
			SuspendOnHighActivity: true,
		},
		Staging: StagingConfig{
			IncludeUntrackedFiles: true,
			MaxUntrackedFiles:     500,
			MaxFileSizeKB:         1024,
			ExcludePatterns: []string{
				"node_modules/**", "vendor/**", ".git/**", "dist/**",
				"build/**", "target/**", "__pycache__/**",
			},
		},
		Paths: PathsConfig{
			Code: []string{
				"**/*.go", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx",
				"**/*.py", "**/*.rs", "**/*.c", "**/*.cpp", "**/*.h",
				"**/*.java", "**/*.rb", "**/*.php",
			},
			Docs:   []string{"**/*.md", "**/*.rst"},
			Ignore: []string{"node_modules/**", "vendor/**", ".git/**", "dist/**", "build/**"},
		},
		Chunking: ChunkingConfig{
			CodeChunkSize: 2000,
			DocChunkSize:  800,
		},
		Store: StoreConfig{
			GlobalRoot: "~/.claude/cortex-embeddings",
		},
	}
}
