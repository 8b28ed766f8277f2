// Package main is the entry point for the savekeep CLI.
package main

import (
	"os"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands"
)

func main() {
	os.Exit(commands.Main(os.Stderr))
}
