package probe

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/ledger"
	"github/chapool/ledger-provider/internal/util/command"
)

func newDevice() *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Opens the device session and prints the account",
		Long: `Opens the device session the same way the server does on the first
account request and prints the account at the configured derivation path.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
				if cfg.Device.Backend == config.BackendLedger {
					fmt.Fprintf(cmd.OutOrStdout(), "Ledger devices attached: %d\n", ledger.NewAdmin().CountDevices())
				}

				session, err := s.Devices.Open(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", session.Path().String(), session.Address().Hex())
				return nil
			})
		},
	}
}
