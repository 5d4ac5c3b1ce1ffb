package account

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/util/command"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Prints the account exposed by the provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
				result, err := s.Provider.Request(ctx, provider.Request{Method: string(provider.MethodRequestAccounts)})
				if err != nil {
					return err
				}

				var accounts []common.Address
				if err := json.Unmarshal(result, &accounts); err != nil {
					return errors.Wrap(err, "failed to decode accounts")
				}

				for _, account := range accounts {
					fmt.Fprintln(cmd.OutOrStdout(), account.Hex())
				}
				return nil
			})
		},
	}
}
