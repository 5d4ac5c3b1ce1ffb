package tx

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/util/command"
	"github/chapool/ledger-provider/internal/wallet/network"
)

const pollInterval = 2 * time.Second

func newStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <hash>",
		Short: "Prints the receipt of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseHash(args[0])
			if err != nil {
				return err
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

			client, err := network.NewClient(cmd.Context(), cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
			if err != nil {
				return err
			}
			defer client.Close()

			wait, _ := cmd.Flags().GetBool(waitFlag)
			return writeStatus(cmd.Context(), cmd, client, hash, wait)
		},
	}

	cmd.Flags().Bool(waitFlag, false, "wait until the transaction is mined")

	return cmd
}

func parseHash(s string) (common.Hash, error) {
	const hexHashLength = 2 + 2*common.HashLength
	if len(s) != hexHashLength || !common.IsHex(s) {
		return common.Hash{}, errors.Errorf("invalid transaction hash %q", s)
	}
	return common.HexToHash(s), nil
}

type receiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

func writeStatus(ctx context.Context, cmd *cobra.Command, client receiptSource, hash common.Hash, wait bool) error {
	receipt, err := client.TransactionReceipt(ctx, hash)
	for err == nil && receipt == nil && wait {
		log.Debug().Str("tx_hash", hash.Hex()).Msg("Transaction pending, waiting")

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "stopped waiting for receipt")
		case <-time.After(pollInterval):
		}
		receipt, err = client.TransactionReceipt(ctx, hash)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if receipt == nil {
		fmt.Fprintf(out, "%s pending\n", hash.Hex())
		return nil
	}

	status := "success"
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = "failed"
	}
	fmt.Fprintf(out, "%s %s block=%s gas_used=%d", hash.Hex(), status, receipt.BlockNumber, receipt.GasUsed)
	if receipt.EffectiveGasPrice != nil {
		fmt.Fprintf(out, " effective_gas_price=%s", receipt.EffectiveGasPrice)
	}
	if receipt.ContractAddress != (common.Address{}) {
		fmt.Fprintf(out, " contract=%s", receipt.ContractAddress.Hex())
	}
	fmt.Fprintln(out)

	return nil
}
