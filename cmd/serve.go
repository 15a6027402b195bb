package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Serve the news pipeline over HTTP: POST /v1/news accepts a query, GET /health reports liveness.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		svc, closer, err := buildService(cfg)
		if err != nil {
			return err
		}
		defer closer()

		addr := cfg.GetListenAddr()
		if flagAddr != "" {
			addr = flagAddr
		}

		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return server.Run(svc, addr, logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
}
