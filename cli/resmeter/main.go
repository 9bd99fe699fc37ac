package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/resmeter/resmeter/cli/resmeter/cmd"
	"github.com/resmeter/resmeter/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.New(logger.New).Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "resmeter: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
