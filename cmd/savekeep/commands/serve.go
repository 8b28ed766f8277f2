package commands

import (
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/savekeep/cmd/savekeep/commands/flags"
	"github.com/thoreinstein/savekeep/internal/cli"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/server"
)

var (
	serveAddr  string
	allowHosts []string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: serve.addr)")
	serveCmd.Flags().StringSliceVar(&allowHosts, "allow-host", nil, "Extra host name accepted in requests (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API over HTTP",
	Long: `Serve the savekeep JSON API under /api until interrupted.

The API has no authentication. Keep it on a loopback address.

Requests must name the server by a loopback host, the host of the listen
address, or a host given with --allow-host. State-changing requests from a
browser page on another origin are refused.`,
	Example: `  # Serve on the configured address
  savekeep serve

  # Serve on another port
  savekeep serve --addr 127.0.0.1:9000`,
	Args: cli.Args(cobra.NoArgs),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cfg, err := cli.OpenService(ctx, flags.Options())
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	hosts := append([]string{}, allowHosts...)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		hosts = append(hosts, host)
	}
	logger := logging.FromContext(ctx)
	return server.Run(ctx, addr, server.New(svc, logger, server.WithAllowedHosts(hosts...)), logger)
}
