package commands

import (
	"os"

	"github.com/spf13/cobra"

	"pairchat/internal/config"
	"pairchat/internal/logging"
	"pairchat/internal/server"
)

func serveCmd() *cobra.Command {
	cfg := config.Default()
	var framing string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Framing = config.Framing(framing)

			log, err := logging.New(os.Stderr, cfg.Verbose, cfg.LogFormat)
			if err != nil {
				return err
			}

			srv, err := server.Listen(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			log.Info("relay started", "tcp", cfg.TCPAddr, "websocket", cfg.WSAddr, "metrics", cfg.MetricsAddr)

			if err := srv.Run(ctx); err != nil {
				return err
			}

			log.Info("shutting down...")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.TCPAddr, "tcp-addr", cfg.TCPAddr, "TCP listen address (empty disables)")
	f.StringVar(&framing, "framing", string(cfg.Framing), "TCP framing: raw (one read per message) or line")
	f.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "WebSocket listen address (empty disables)")
	f.StringVar(&cfg.WSPath, "ws-path", cfg.WSPath, "WebSocket endpoint path")
	f.StringSliceVar(&cfg.WSOrigins, "ws-origin", nil, "allowed WebSocket Origin (repeatable; default any)")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty disables)")
	f.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "outbound frames buffered per client")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose logging")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or text")

	return cmd
}
