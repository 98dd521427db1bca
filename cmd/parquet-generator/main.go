// Package main is the parquet-generator command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/martian17/parquet-generator/internal/cli"
	"github.com/martian17/parquet-generator/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.BuildCLI(fmt.Sprintf("%s (commit: %s)", version, commit))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if path := errors.GetPath(err); path != "" {
			fmt.Fprintf(os.Stderr, "  file: %s\n", path)
		}
		stop()
		os.Exit(1)
	}
}
