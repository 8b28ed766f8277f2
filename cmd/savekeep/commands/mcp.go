package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd"
	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve savekeep tools over MCP (stdio)",
	Long: `Run a Model Context Protocol server on stdin and stdout.

Every savekeep operation is exposed as a tool, such as snapshot_create or
files_add. Logs go to stderr so they do not interfere with the protocol.`,
	Example: `  # Register with an MCP client
  savekeep mcp`,
	Args: cli.Args(cobra.NoArgs),
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, _, err := cli.OpenService(ctx, flags.Options())
		if err != nil {
			return err
		}
		defer svc.Close()

		return mcp.Serve(ctx, mcp.NewServer(svc, cmd.Version), c.InOrStdin(), c.OutOrStdout())
	},
}
