package tx

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/util/command"
	"github/chapool/ledger-provider/internal/wallet/provider"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

const (
	toFlag          = "to"
	valueFlag       = "value"
	dataFlag        = "data"
	gasFlag         = "gas"
	gasPriceFlag    = "gas-price"
	maxFeeFlag      = "max-fee"
	priorityFeeFlag = "priority-fee"
	nonceFlag       = "nonce"
	waitFlag        = "wait"
)

func newSend() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Builds, signs on the device and broadcasts a transaction",
		Long: `Builds a transaction from the device account, asks the device to sign it and
broadcasts it to the node. Amounts are in wei. Unset fields are filled in from
the node: nonce, fees (fee market unless --gas-price is given) and gas with a
20% margin.`,
		RunE: runSend,
	}

	cmd.Flags().String(toFlag, "", "recipient, omit to deploy a contract")
	cmd.Flags().String(valueFlag, "0", "value in wei")
	cmd.Flags().String(dataFlag, "", "hex encoded call data")
	cmd.Flags().Uint64(gasFlag, 0, "gas limit, estimated if 0")
	cmd.Flags().String(gasPriceFlag, "", "legacy gas price in wei")
	cmd.Flags().String(maxFeeFlag, "", "max fee per gas in wei")
	cmd.Flags().String(priorityFeeFlag, "", "max priority fee per gas in wei")
	cmd.Flags().Int64(nonceFlag, -1, "nonce, taken from the node if negative")
	cmd.Flags().Bool(waitFlag, false, "wait for the receipt")

	return cmd
}

func runSend(cmd *cobra.Command, _ []string) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
		session, err := s.Devices.Open(ctx)
		if err != nil {
			return err
		}

		args, err := sendArgs(cmd, session.Address())
		if err != nil {
			return err
		}
		params, err := json.Marshal([]*txbuilder.SendTxArgs{args})
		if err != nil {
			return errors.Wrap(err, "failed to encode transaction")
		}

		result, err := s.Provider.Request(ctx, provider.Request{
			Method: string(provider.MethodSendTransaction),
			Params: params,
		})
		if err != nil {
			return err
		}

		var hash common.Hash
		if err := json.Unmarshal(result, &hash); err != nil {
			return errors.Wrap(err, "failed to decode transaction hash")
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash.Hex())

		if wait, _ := cmd.Flags().GetBool(waitFlag); wait {
			return writeStatus(ctx, cmd, s.Network, hash, true)
		}
		return nil
	})
}

func sendArgs(cmd *cobra.Command, from common.Address) (*txbuilder.SendTxArgs, error) {
	flags := cmd.Flags()
	args := &txbuilder.SendTxArgs{From: &from}

	if to, _ := flags.GetString(toFlag); to != "" {
		if !common.IsHexAddress(to) {
			return nil, errors.Errorf("invalid recipient %q", to)
		}
		address := common.HexToAddress(to)
		args.To = &address
	}

	var err error
	if args.Value, err = weiFlag(cmd, valueFlag); err != nil {
		return nil, err
	}
	if args.GasPrice, err = weiFlag(cmd, gasPriceFlag); err != nil {
		return nil, err
	}
	if args.MaxFeePerGas, err = weiFlag(cmd, maxFeeFlag); err != nil {
		return nil, err
	}
	if args.MaxPriorityFeePerGas, err = weiFlag(cmd, priorityFeeFlag); err != nil {
		return nil, err
	}

	if data, _ := flags.GetString(dataFlag); data != "" {
		decoded, err := hexutil.Decode(data)
		if err != nil {
			return nil, errors.Wrap(err, "invalid data")
		}
		input := hexutil.Bytes(decoded)
		args.Input = &input
	}

	if gas, _ := flags.GetUint64(gasFlag); gas > 0 {
		args.Gas = (*hexutil.Uint64)(&gas)
	}
	if nonce, _ := flags.GetInt64(nonceFlag); nonce >= 0 {
		n := hexutil.Uint64(nonce)
		args.Nonce = &n
	}

	return args, nil
}

func weiFlag(cmd *cobra.Command, name string) (*hexutil.Big, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return nil, nil //nolint:nilnil // unset flag
	}

	wei, ok := new(big.Int).SetString(value, 10)
	if !ok || wei.Sign() < 0 {
		return nil, errors.Errorf("invalid --%s %q, expected a non-negative amount in wei", name, value)
	}
	return (*hexutil.Big)(wei), nil
}
