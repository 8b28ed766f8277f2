// Package flags provides shared flag accessors for CLI commands.
// This package exists to avoid import cycles between the root command
// and noun subpackages (files, snapshot).
package flags

import "github.com/thoreinstein/savekeep/internal/cli"

var (
	configFile string
	storeDir   string
)

// Options returns the global store options set by the root command.
func Options() cli.Options {
	return cli.Options{ConfigFile: configFile, StoreDir: storeDir}
}

// SetOptions sets the global store options after flag parsing.
func SetOptions(o cli.Options) {
	configFile = o.ConfigFile
	storeDir = o.StoreDir
}
