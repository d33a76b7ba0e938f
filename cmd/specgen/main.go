// SpecGen: turn a project goal into user stories and engineering tasks.
//
// Usage:
//
//	specgen serve                      # HTTP API on :3001
//	specgen mcp                        # MCP server (stdio transport)
//	specgen generate "Expense tracker" # create a spec through the API
//	specgen tasks list latest          # organize the newest spec's tasks
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omjikush09/aggroso/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
