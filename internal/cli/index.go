package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cortexlabs/cortex-core/internal/config"
	"github.com/cortexlabs/cortex-core/internal/indexer"
)

var (
	quietFlag      bool
	watchFlag      bool
	incrementalFlag bool
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the codebase for semantic search",
	Long: `Index scans the repository (source code + documentation), chunks and
analyzes it, generates embeddings, and persists the result to the dual-tier
chunk store and relationship graph.

Examples:
  # Full index of the current directory
  cortex index

  # Incremental index against the last persisted commit
  cortex index --incremental

  # Index once, then keep watching for live changes
  cortex index --watch
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "disable progress output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "keep watching for file changes after the initial index")
	indexCmd.Flags().BoolVarP(&incrementalFlag, "incremental", "i", false, "index only files changed since the last run")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted, cancelling...")
		cancel()
	}()

	rootDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	var bar *progressbar.ProgressBar
	if !quietFlag {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionThrottle(65*time.Millisecond),
		)
		defer bar.Finish()
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					bar.Add(1)
				}
			}
		}()
	}

	ix, err := indexer.New(ctx, *cfg, rootDir)
	if err != nil {
		return fmt.Errorf("build indexer: %w", err)
	}
	defer ix.Close()

	var stats indexer.Stats
	if incrementalFlag {
		stats, err = ix.IndexIncremental(ctx)
	} else {
		stats, err = ix.IndexFull(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("indexing cancelled")
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	printStats(stats)

	if watchFlag {
		fmt.Fprintln(os.Stderr, "watching for changes, press Ctrl+C to stop")
		if err := ix.StartWatch(ctx); err != nil {
			return fmt.Errorf("start watch: %w", err)
		}
		<-ctx.Done()
	}

	return nil
}

func printStats(stats indexer.Stats) {
	fmt.Printf("indexed %d files: %d chunks added, %d updated, %d removed (%d total) in %dms\n",
		stats.FilesScanned, stats.ChunksAdded, stats.ChunksUpdated, stats.ChunksRemoved,
		stats.TotalChunks, stats.ProcessingTimeMs)
}
