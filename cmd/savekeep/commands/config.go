package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/config"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/opener"
)

// Output formats for config list.
const (
	formatYAML = "yaml"
	formatJSON = "json"
	formatTOML = "toml"
)

var configFormat string

func init() {
	configListCmd.Flags().StringVarP(&configFormat, "format", "f", formatYAML, "Output format: yaml, json, toml")
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage savekeep configuration",
	Long: `Manage savekeep configuration stored in config.yaml.

The file is searched in the current directory and the user config directory
(~/.config/savekeep on Linux). Every key can also be set through a
SAVEKEEP_ environment variable, e.g. SAVEKEEP_RETENTION=5.

Without a subcommand, lists all configuration values.`,
	Example: `  # List all configuration
  savekeep config

  # Get a specific value
  savekeep config get retention

  # Set a value
  savekeep config set retention 5

See Also: savekeep doctor`,
	Args: cli.Args(cobra.NoArgs),
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a single configuration value by key.

Nested keys use dot notation, as in serve.addr.`,
	Example: `  # Get the retention window
  savekeep config get retention

  # Get the API address
  savekeep config get serve.addr

See Also: savekeep config set, savekeep config list`,
	Args: cli.Args(cobra.ExactArgs(1)),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write the configuration file.

The value is validated before anything is written.`,
	Example: `  # Keep 5 protected snapshots per entry
  savekeep config set retention 5

  # Compare paths case-insensitively
  savekeep config set path_case insensitive

See Also: savekeep config get, savekeep config list`,
	Args: cli.Args(cobra.ExactArgs(2)),
	RunE: runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long:  `List all effective configuration values, including defaults.`,
	Example: `  # List all configuration
  savekeep config list

  # As TOML
  savekeep config list --format toml

See Also: savekeep config get, savekeep config set`,
	Args: cli.Args(cobra.NoArgs),
	RunE: runConfigList,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in $EDITOR",
	Long: `Open the configuration file in your default editor.

Uses $EDITOR, then $VISUAL, then nano or vi. If no configuration file exists
yet, one is written with the current values first.`,
	Example: `  # Open config in default editor
  savekeep config edit

  # Open with specific editor
  EDITOR=nano savekeep config edit

See Also: savekeep config list`,
	Args: cli.Args(cobra.NoArgs),
	RunE: runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cli.Args(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := cli.LoadConfig(flags.Options()); err != nil && !errors.Is(err, errors.ErrInvalidConfig) {
			return errors.NewConfigError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.FilePath())
		return nil
	},
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(flags.Options())
	if err != nil {
		return errors.NewConfigError(err)
	}

	val, ok := lookup(cfg.Map(), args[0])
	if !ok {
		return errors.NewUserError(errors.Newf("unknown config key %q", args[0]),
			"Valid keys: "+strings.Join(config.Keys, ", "))
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	// An invalid file can still be repaired by the value being set.
	if _, err := cli.LoadConfig(flags.Options()); err != nil && !errors.Is(err, errors.ErrInvalidConfig) {
		return errors.NewConfigError(err)
	}

	key, value := args[0], args[1]
	if err := config.Set(key, value); err != nil {
		return errors.NewUserError(err, "Run 'savekeep config list' to see current values")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Set %s = %s\n", cli.Green("✓"), key, value)
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig(flags.Options())
	if err != nil {
		return errors.NewConfigError(err)
	}
	return renderConfig(cmd.OutOrStdout(), cfg.Map(), configFormat)
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig(flags.Options())
	if err != nil && !errors.Is(err, errors.ErrInvalidConfig) {
		return errors.NewConfigError(err)
	}
	path := config.FilePath()
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) && cfg != nil {
		// Materialize the file so there is something to edit
		if err := config.Set("version", fmt.Sprint(cfg.Version)); err != nil {
			return err
		}
	}
	return opener.Edit(path, opener.Streams{
		In:  cmd.InOrStdin(),
		Out: cmd.OutOrStdout(),
		Err: cmd.ErrOrStderr(),
	})
}

// renderConfig writes m in the requested format.
func renderConfig(w io.Writer, m map[string]any, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case formatYAML:
		data, err = yaml.Marshal(m)
	case formatJSON:
		data, err = json.MarshalIndent(m, "", "  ")
		data = append(data, '\n')
	case formatTOML:
		data, err = toml.Marshal(m)
	default:
		return errors.NewUserError(errors.Newf("unknown format %q", format), "Use --format yaml, json or toml")
	}
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	_, err = w.Write(data)
	return err
}

// lookup resolves a dotted key in a nested map.
func lookup(m map[string]any, key string) (any, bool) {
	var cur any = m
	for part := range strings.SplitSeq(key, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = mm[part]; !ok {
			return nil, false
		}
	}
	if _, nested := cur.(map[string]any); nested {
		return nil, false
	}
	return cur, true
}
