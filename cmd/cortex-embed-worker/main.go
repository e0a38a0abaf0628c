// Command cortex-embed-worker is the worker-side binary of the embedding
// pool's stdio protocol (spec §6): one subprocess per pool slot, reading
// requests on stdin and writing replies on stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cortexlabs/cortex-core/internal/embedder"
	"github.com/cortexlabs/cortex-core/internal/embedworker"
)

func main() {
	workerID := flag.String("worker-id", "", "identifier reported back in init_complete")
	dimension := flag.Int("dimension", 384, "embedding vector dimension")
	flag.Parse()

	emb := embedder.NewMock(*dimension)
	if err := embedworker.Run(os.Stdin, os.Stdout, *workerID, emb); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "cortex-embed-worker: %v\n", err)
		os.Exit(1)
	}
}
