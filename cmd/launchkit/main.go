// Command launchkit drives an installed game-asset toolkit.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/launchkit/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cmd.PrintError(os.Stderr, err)
		os.Exit(cmd.ExitStatus(err))
	}
}
