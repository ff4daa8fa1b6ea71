// Package main is the entry point for rmsnarf.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/rmsnarf/cmd"
	"github.com/danielolaszy/rmsnarf/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logging.Debug("starting rmsnarf", "version", version)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
