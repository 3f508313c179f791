// Package main provides the entry point for the myclaw CLI.
package main

import (
	"fmt"
	"os"

	"github.com/myclaw-dev/myclaw/cmd/myclaw/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
