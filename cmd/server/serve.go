package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/voicechat/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voicechat server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := server.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Msg("close stores")
			}
		}()
		if err := s.Run(ctx); err != nil {
			return err
		}
		log.Info().Msg("Server exited gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

