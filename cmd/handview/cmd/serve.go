package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xReLogic/handview/internal/logging"
	"github.com/0xReLogic/handview/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.L()
	cfg, err := loadConfig(cmd)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	logging.Init(cfg)
	logger = logging.L()

	srv, err := server.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create server")
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}
