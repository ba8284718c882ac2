// Package main is the entry point for the psalmspec CLI application.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/eykd/psalmspec/cmd"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	rootCmd.Version = Version
	// fang renders the error itself.
	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(Version),
		fang.WithCommit(Commit),
	); err != nil {
		os.Exit(1)
	}
}
