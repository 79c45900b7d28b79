// Package main is the entry point for the codefair GitHub App.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/codefair/cmd"
	"github.com/danielolaszy/codefair/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(version)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
