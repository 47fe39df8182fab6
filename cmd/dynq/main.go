// Package main is the entry point for the dynq CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dynquery/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dynq:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
