package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/agentengine/pkg/gateway"
)

type serveOptions struct {
	host string
	port int
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP (SSE and WebSocket)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = opts.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = opts.port
			}

			a, cleanup, err := root.buildApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var jobs []gateway.BackgroundJob
			if a.Cleanup != nil {
				jobs = append(jobs, a.Cleanup)
			}

			srv, err := gateway.NewServer(gateway.Config{
				Host:            cfg.Server.Host,
				Port:            cfg.Server.Port,
				Engine:          a.Engine,
				Jobs:            jobs,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Logger:          a.Logger().With().Str("component", "gateway").Logger(),
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
