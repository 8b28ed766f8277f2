// Package cli provides helpers shared by savekeep's commands.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/thoreinstein/savekeep/internal/config"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/naming"
	"github.com/thoreinstein/savekeep/internal/service"
)

// Options are the global flags that affect how the store is opened.
type Options struct {
	// ConfigFile is an explicit config file; empty searches the defaults.
	ConfigFile string

	// StoreDir overrides store_dir when set.
	StoreDir string
}

// LoadConfig initializes Viper and reads the configuration.
func LoadConfig(opts Options) (*config.Config, error) {
	config.Init()
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.StoreDir != "" {
		dir, err := naming.Normalizer{}.Clean(opts.StoreDir)
		if err != nil {
			return nil, errors.Wrap(err, "--store")
		}
		cfg.StoreDir = dir
	}
	return cfg, nil
}

// OpenService loads configuration and opens the service with the logger
// carried by ctx. Configuration failures are reported as config errors.
func OpenService(ctx context.Context, opts Options) (*service.Service, *config.Config, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, nil, errors.NewConfigError(err)
	}
	svc, err := service.New(cfg, service.WithLogger(logging.FromContext(ctx)))
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// IsInteractive reports whether both stdin and w are terminals.
func IsInteractive(w io.Writer) bool {
	return logging.IsTTY(os.Stdin) && logging.IsTTY(w)
}
