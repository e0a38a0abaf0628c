package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortexlabs/cortex-core/internal/embedder"
	"github.com/cortexlabs/cortex-core/internal/embedworker"
)

var (
	embedWorkerID        string
	embedWorkerDimension int
)

var serveEmbedWorkerCmd = &cobra.Command{
	Use:    "serve-embed-worker",
	Short:  "Run an embedding worker on stdin/stdout (internal)",
	Hidden: true,
	Long: `serve-embed-worker speaks the embedding pool's stdio protocol
(spec §6) directly from the cortex binary, as an alternative to spawning
the standalone cortex-embed-worker binary.`,
	RunE: runServeEmbedWorker,
}

func init() {
	rootCmd.AddCommand(serveEmbedWorkerCmd)
	serveEmbedWorkerCmd.Flags().StringVar(&embedWorkerID, "worker-id", "", "identifier reported back in init_complete")
	serveEmbedWorkerCmd.Flags().IntVar(&embedWorkerDimension, "dimension", 384, "embedding vector dimension")
}

func runServeEmbedWorker(cmd *cobra.Command, args []string) error {
	emb := embedder.NewMock(embedWorkerDimension)
	if err := embedworker.Run(os.Stdin, os.Stdout, embedWorkerID, emb); err != nil && err != io.EOF {
		return fmt.Errorf("serve-embed-worker: %w", err)
	}
	return nil
}
