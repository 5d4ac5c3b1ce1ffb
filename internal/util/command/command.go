package command

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/util"
)

const shutdownTimeout = 30 * time.Second

// ConfigFlag names the persistent flag holding the optional config file path.
const ConfigFlag = "config"

// NewSubcommandGroup returns a command that only groups subCmds and prints its help when run.
func NewSubcommandGroup(name string, subCmds ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: "Subcommand group for " + name,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subCmds...)

	return cmd
}

// WithServer initializes a fully wired server for cfg, runs f and shuts the
// server down again, releasing the device session.
func WithServer(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *api.Server) error) error {
	util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize server")
		return err
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if errs := s.Shutdown(ctx); len(errs) > 0 {
			log.Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
		}
	}()

	return f(ctx, s)
}

// LoadConfig reads the configuration from the --config flag, the environment and .env.
func LoadConfig(cmd *cobra.Command) (config.Server, error) {
	// commands without the persistent flag fall back to env only
	configFile, _ := cmd.Flags().GetString(ConfigFlag)

	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Server{}, err
	}

	return cfg, cfg.Validate()
}
