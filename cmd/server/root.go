package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/voicechat/internal/config"
)

var configEnv string

var rootCmd = &cobra.Command{
	Use:           "voicechat",
	Short:         "Chat, presence and voice call signaling server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("voicechat")
	}
}

func init() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.PersistentFlags().StringVar(&configEnv, "config-env", "", "selects config/config.<env>.yaml (default $CONFIG_ENV or dev)")
}

// loadConfig reads the config and switches to JSON logs in release mode.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configEnv)
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case "release":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return cfg, nil
}
