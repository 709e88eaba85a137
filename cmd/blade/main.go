package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dangdungcntt/go-blade-slots/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
