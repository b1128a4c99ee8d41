package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/embedfixer/embedfixer/internal/config"
	"github.com/embedfixer/embedfixer/internal/server"
)

func serveCmd(logOut io.Writer) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.ListenAndServe(ctx, cfg, server.NewLogger(cfg, logOut))
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides SERVER_ADDR)")
	return cmd
}

