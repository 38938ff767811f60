// Command xqopt rewrites XQuery-style logical plans.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/xqopt/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "xqopt:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
