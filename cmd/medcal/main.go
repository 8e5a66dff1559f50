package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appLog "medcal/internal/log"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("medcal failed", err)
		stop()
		os.Exit(1)
	}
}
