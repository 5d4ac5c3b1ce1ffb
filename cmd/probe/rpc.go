package probe

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/util/command"
	"github/chapool/ledger-provider/internal/wallet/network"
)

func newRPC() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc",
		Short: "Checks that the node is reachable and serves the configured chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Management.ProbeTimeout)
			defer cancel()

			client, err := network.NewClient(ctx, cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
			if err != nil {
				return err
			}
			defer client.Close()

			chainID, err := client.ChainID(ctx)
			if err != nil {
				return errors.Wrap(err, "node is not reachable")
			}
			if chainID.Int64() != cfg.Chain.ID {
				return errors.Errorf("node serves chain %d, expected %d", chainID.Int64(), cfg.Chain.ID)
			}

			baseFee, err := client.LatestBaseFee(ctx)
			if err != nil {
				return err
			}

			fees := "legacy gas price"
			if baseFee != nil {
				fees = "fee market, base fee " + baseFee.String() + " wei"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: chain %d, %s\n", client.URL(), chainID.Int64(), fees)
			return nil
		},
	}
}
