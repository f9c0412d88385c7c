package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nephroseq/genevidence-cli/cmd"
	"github.com/nephroseq/genevidence-cli/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)

	if logger := observability.GetLogger(); logger != nil {
		_ = logger.Sync()
	}
	stop()

	if err != nil {
		os.Exit(1)
	}
}
