package txbuilder

import (
	"bytes"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github/chapool/ledger-provider/internal/wallet"
)

// SendTxArgs is the transaction object of eth_sendTransaction. Every field is optional.
type SendTxArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasLimit             *hexutil.Uint64 `json:"gasLimit"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

// DecodeSendTxParams decodes the positional params [txObject] of eth_sendTransaction.
func DecodeSendTxParams(params json.RawMessage) (*SendTxArgs, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil || len(raw) == 0 {
		return nil, errors.Wrap(wallet.ErrInvalidParams, "expected [transaction]")
	}

	args := new(SendTxArgs)
	if err := json.Unmarshal(raw[0], args); err != nil {
		return nil, errors.Wrapf(wallet.ErrInvalidParams, "invalid transaction object: %v", err)
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	return args, nil
}

// IsDynamicFee reports whether the request selects a fee-market transaction.
func (a *SendTxArgs) IsDynamicFee() bool {
	return a.MaxFeePerGas != nil || a.MaxPriorityFeePerGas != nil
}

// gasLimit returns the requested gas limit, preferring gas over gasLimit, or zero if absent.
func (a *SendTxArgs) gasLimit() uint64 {
	if a.Gas != nil && *a.Gas > 0 {
		return uint64(*a.Gas)
	}
	if a.GasLimit != nil {
		return uint64(*a.GasLimit)
	}
	return 0
}

func (a *SendTxArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

func (a *SendTxArgs) validate() error {
	if a.Data != nil && a.Input != nil && !bytes.Equal(*a.Data, *a.Input) {
		return errors.Wrap(wallet.ErrInvalidParams, `both "data" and "input" are set and not equal`)
	}
	if a.GasPrice != nil && a.IsDynamicFee() {
		return errors.Wrap(wallet.ErrInvalidParams, "both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	if a.MaxFeePerGas != nil && a.MaxPriorityFeePerGas != nil &&
		a.MaxPriorityFeePerGas.ToInt().Cmp(a.MaxFeePerGas.ToInt()) > 0 {
		return errors.Wrapf(wallet.ErrInvalidParams, "maxPriorityFeePerGas (%v) > maxFeePerGas (%v)",
			a.MaxPriorityFeePerGas, a.MaxFeePerGas)
	}
	if a.To == nil && len(a.data()) == 0 {
		return errors.Wrap(wallet.ErrInvalidParams, "contract creation without any data provided")
	}
	return nil
}
