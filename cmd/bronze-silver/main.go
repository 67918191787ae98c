package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/medallion/internal/cli"
	"github.com/V4T54L/medallion/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewStageCommand(domain.StageBronzeToSilver).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
