// Command cortex is the CLI entry point: index, search, and watch a
// repository through the semantic code-intelligence engine.
package main

import "github.com/cortexlabs/cortex-core/internal/cli"

func main() {
	cli.Execute()
}
