// Package main provides the entry point for the wmviews CLI.
package main

import (
	"os"

	"github.com/dmwm/wmviews/cmd/wmviews/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
