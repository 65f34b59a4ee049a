// Package main is the entry point for the litesql CLI.
package main

import (
	"os"

	"github.com/satishbabariya/litesql/cmd/litesql/commands"
	"github.com/satishbabariya/litesql/internal/ui"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
