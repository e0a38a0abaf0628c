// Package mcpsurface is the handoff point to an external Model Context
// Protocol surface (spec §6 names this out of scope for the core): it
// registers a single cortex_search tool over mark3labs/mcp-go and serves it
// on stdio, delegating every query straight to the core Searcher. It is
// deliberately thin — richer tool surfaces (graph queries, file listings,
// pattern search) belong to a consumer of this package, not the core.
package mcpsurface

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cortexlabs/cortex-core/internal/logging"
	"github.com/cortexlabs/cortex-core/internal/search"
)

// Searcher is the subset of indexer.Indexer the surface depends on.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// Server serves cortex_search over MCP stdio.
type Server struct {
	mcp *server.MCPServer
	log *logging.Logger
}

// New builds a Server backed by the given Searcher.
func New(s Searcher) *Server {
	mcpServer := server.NewMCPServer(
		"cortex-core",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tool := mcp.NewTool(
		"cortex_search",
		mcp.WithDescription("Search the indexed codebase for context relevant to a task, with optional relationship-graph expansion."),
		mcp.WithString("task", mcp.Required(), mcp.Description("Natural language description of what you're trying to do")),
		mcp.WithNumber("max_chunks", mcp.Description("maximum chunks to return (default 20)")),
		mcp.WithBoolean("multi_hop", mcp.Description("expand results through the relationship graph")),
	)
	mcpServer.AddTool(tool, searchHandler(s))

	return &Server{mcp: mcpServer, log: logging.New("mcpsurface")}
}

// Serve blocks on stdio until the process receives an interrupt.
func (srv *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		srv.log.Println("serving cortex_search on stdio")
		if err := server.ServeStdio(srv.mcp); err != nil {
			errCh <- fmt.Errorf("mcp server: %w", err)
		}
	}()

	select {
	case <-sigCh:
		cancel()
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func searchHandler(s Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		task, ok := args["task"].(string)
		if !ok || task == "" {
			return mcp.NewToolResultError("task parameter is required"), nil
		}

		maxChunks := 20
		if v, ok := args["max_chunks"].(float64); ok && v > 0 {
			maxChunks = int(v)
		}
		multiHop, _ := args["multi_hop"].(bool)

		resp, err := s.Search(ctx, search.Request{
			Task:      task,
			MaxChunks: maxChunks,
			MultiHop:  search.MultiHop{Enabled: multiHop, MaxHops: 2},
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatResponse(resp)), nil
	}
}

func formatResponse(resp search.Response) string {
	out := fmt.Sprintf("%d chunks (mode=%s)\n", len(resp.Chunks), resp.Mode)
	for _, c := range resp.Chunks {
		out += fmt.Sprintf("%s:%d-%d %s\n%s\n\n", c.FilePath, c.StartLine, c.EndLine, c.SymbolName, c.Content)
	}
	return out
}
