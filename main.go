package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"volume-backup/src/cli"
)

func main() {
	// SIGINT/SIGTERM cancel the context: a running engine subprocess is
	// killed, and deferred cleanup (run-lock release) still executes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
