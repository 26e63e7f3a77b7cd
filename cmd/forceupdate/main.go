package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamancini/forceupdate/internal/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitForceUpdate is the exit status of check --fail-on-force when an update is forced.
const exitForceUpdate = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, version, commit, date)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cmd.ErrForceUpdateRequired) {
			os.Exit(exitForceUpdate)
		}
		os.Exit(1)
	}
}
