package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortexlabs/cortex-core/internal/config"
	"github.com/cortexlabs/cortex-core/internal/indexer"
	"github.com/cortexlabs/cortex-core/internal/mcpsurface"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve cortex_search over the Model Context Protocol on stdio",
	Long: `mcp starts a minimal MCP server exposing the indexed codebase to an
LLM coding assistant through a single cortex_search tool. Richer tool
surfaces are out of scope for the core (spec §6) and belong to a consumer
of internal/mcpsurface.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
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

	return mcpsurface.New(ix).Serve(ctx)
}
