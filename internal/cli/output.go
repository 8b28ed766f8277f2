package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// Output colors. fatih/color disables them when stdout is not a terminal
// or NO_COLOR is set.
var (
	Bold   = color.New(color.Bold).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Gray   = color.New(color.FgHiBlack).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encoding output")
}

// Args wraps a positional argument validator so that its failures exit
// as user errors with a usage hint.
func Args(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return UsageError(cmd, err)
		}
		return nil
	}
}

// UsageError marks err as a user error pointing at the command's help.
func UsageError(cmd *cobra.Command, err error) error {
	return errors.NewUserError(err, fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()))
}
