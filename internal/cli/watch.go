package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortexlabs/cortex-core/internal/config"
	"github.com/cortexlabs/cortex-core/internal/indexer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the repository and reindex incrementally as files change",
	Long: `Watch runs the live change pipeline (spec §4.10): a recursive
filesystem watcher feeds a debounced, priority-ordered change processor that
triggers incremental reindexing without a full rescan.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nstopping watch...")
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

	ix, err := indexer.New(ctx, *cfg, rootDir)
	if err != nil {
		return fmt.Errorf("build indexer: %w", err)
	}
	defer ix.Close()

	if _, err := ix.IndexFull(ctx); err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}

	if err := ix.StartWatch(ctx); err != nil {
		return fmt.Errorf("start watch: %w", err)
	}

	fmt.Fprintln(os.Stderr, "watching for changes, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
