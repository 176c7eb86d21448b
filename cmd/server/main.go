package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beamchat/server/internal/app"
	"github.com/beamchat/server/internal/config"
	"github.com/beamchat/server/internal/log"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "beamchat-server",
		Short: "Real-time messaging hub",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the messaging server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrapLogger := log.New("info", "console")

			cfg, path, err := config.Load(bootstrapLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := log.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting beamchat server")

			application, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
