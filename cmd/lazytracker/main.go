package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Joseda-hg/lazytracker/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "lazytracker:", err)
		os.Exit(1)
	}
}
