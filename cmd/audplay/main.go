// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ik5/audplay/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.RootCommand().ExecuteContext(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	default:
		fmt.Fprintln(os.Stderr, "audplay:", err)
		stop()
		os.Exit(1)
	}
}
