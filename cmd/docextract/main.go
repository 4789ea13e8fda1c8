// Package main is the entry point for the docextract CLI.
package main

import (
	"os"

	"github.com/dgallion1/docextract/cmd/docextract/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
