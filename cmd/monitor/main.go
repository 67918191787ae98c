package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/medallion/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewMonitorCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
