// Command rwaverify runs multi-actor end-to-end scenarios against the Real
// World App.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/rwaverify/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rwaverify:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
