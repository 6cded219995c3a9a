// Package main is the entry point for the aptledger CLI.
package main

import (
	"os"

	"github.com/jmylchreest/aptledger/cmd/aptledger/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
