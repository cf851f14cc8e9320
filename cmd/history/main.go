package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmethakanbesel/yahoo-history/internal/cli"
)

var version = "dev"

func main() {
	// Cancelled on SIGINT/SIGTERM; symbols already in flight still finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx, version)
}
