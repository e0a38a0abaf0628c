package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexlabs/cortex-core/internal/config"
	"github.com/cortexlabs/cortex-core/internal/indexer"
	"github.com/cortexlabs/cortex-core/internal/search"
)

var (
	searchMaxChunks   int
	searchFileFilters []string
	searchMultiHop    bool
	searchMaxHops     int
	searchTokenBudget int
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search [task]",
	Short: "Search the indexed codebase for a task",
	Long: `Search runs semantic retrieval over the persisted index, optionally
expanding the result through the relationship graph, and assembles a
token-budgeted context package (spec §4.9).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchMaxChunks, "max-chunks", 20, "maximum chunks to return")
	searchCmd.Flags().StringSliceVar(&searchFileFilters, "file", nil, "restrict results to files matching this glob (repeatable)")
	searchCmd.Flags().BoolVar(&searchMultiHop, "multi-hop", false, "expand results through the relationship graph")
	searchCmd.Flags().IntVar(&searchMaxHops, "max-hops", 2, "maximum graph hops when --multi-hop is set")
	searchCmd.Flags().IntVar(&searchTokenBudget, "token-budget", 4000, "token budget for the assembled context package")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit the full response as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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

	resp, err := ix.Search(ctx, search.Request{
		Task:        strings.Join(args, " "),
		MaxChunks:   searchMaxChunks,
		FileFilters: searchFileFilters,
		MultiHop:    search.MultiHop{Enabled: searchMultiHop, MaxHops: searchMaxHops},
		TokenBudget: searchTokenBudget,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printSearchResponse(resp)
	return nil
}

func printSearchResponse(resp search.Response) {
	fmt.Printf("%d chunks (%d considered) in %dms, mode=%s\n",
		len(resp.Chunks), resp.TotalChunksConsidered, resp.QueryTimeMs, resp.Mode)
	for _, c := range resp.Chunks {
		fmt.Printf("  %s:%d-%d  %s\n", c.FilePath, c.StartLine, c.EndLine, c.SymbolName)
	}
	if resp.ContextPackage.Summary != "" {
		fmt.Printf("\n%s\n", resp.ContextPackage.Summary)
	}
}
