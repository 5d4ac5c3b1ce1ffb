package sign

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/util/command"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

const addressFlag = "address"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign-message <message>",
		Short: "Signs a personal message on the device",
		Long: `Signs a message with the Ethereum personal message prefix and prints the
65 byte signature as hex. A message starting with 0x is signed as raw bytes,
anything else as UTF-8 text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			params := []any{args[0]}
			if address, _ := cmd.Flags().GetString(addressFlag); address != "" {
				params = append(params, address)
			}
			raw, err := json.Marshal(params)
			if err != nil {
				return errors.Wrap(err, "failed to encode params")
			}

			return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
				result, err := s.Provider.Request(ctx, provider.Request{
					Method: string(provider.MethodPersonalSign),
					Params: raw,
				})
				if err != nil {
					return err
				}

				var signature string
				if err := json.Unmarshal(result, &signature); err != nil {
					return errors.Wrap(err, "failed to decode signature")
				}

				fmt.Fprintln(cmd.OutOrStdout(), signature)
				return nil
			})
		},
	}

	cmd.Flags().String(addressFlag, "", "expected signing account, rejected if it is not the device account")

	return cmd
}
