package commands

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"pairchat/internal/client"
	"pairchat/internal/config"
)

// dial <addr>: talk to a relay from the terminal.
func dialCmd() *cobra.Command {
	var framing string

	cmd := &cobra.Command{
		Use:   "dial <addr>",
		Short: "Connect to a relay over TCP",
		Long: "Connect to a relay over TCP. Type \"/choose <id>\" to pick a peer;\n" +
			"every other line is sent to that peer.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := net.Dial("tcp", args[0])
			if err != nil {
				return fmt.Errorf("dial %s: %w", args[0], err)
			}
			defer conn.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return client.Run(ctx, conn, os.Stdin, os.Stdout, config.Framing(framing))
		},
	}

	cmd.Flags().StringVar(&framing, "framing", string(config.FramingRaw), "framing used by the server: raw or line")
	return cmd
}
