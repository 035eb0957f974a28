package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Ctrl-C cancellation is a normal exit; cobra already stopped.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "lossless:", err)
		}
		os.Exit(1)
	}
}
