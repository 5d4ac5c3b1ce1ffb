package txbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// UnsignedTx is a complete transaction ready for the device. Exactly one of
// GasPrice (legacy) or MaxFeePerGas/MaxPriorityFeePerGas (fee market) is set.
type UnsignedTx struct {
	ChainID              *big.Int
	Nonce                uint64
	To                   *common.Address
	Value                *big.Int
	Data                 []byte
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	// EstimatedGas is the node estimate Gas was derived from, zero when supplied by the caller.
	EstimatedGas uint64

	from     common.Address
	reserved bool
}

// From returns the account the transaction was built for.
func (u *UnsignedTx) From() common.Address {
	return u.from
}

// Type returns the EIP-2718 transaction type.
func (u *UnsignedTx) Type() uint8 {
	if u.GasPrice != nil {
		return types.LegacyTxType
	}
	return types.DynamicFeeTxType
}

// Tx returns the unsigned go-ethereum transaction.
func (u *UnsignedTx) Tx() *types.Transaction {
	if u.Type() == types.LegacyTxType {
		return types.NewTx(&types.LegacyTx{
			Nonce:    u.Nonce,
			GasPrice: u.GasPrice,
			Gas:      u.Gas,
			To:       u.To,
			Value:    u.Value,
			Data:     u.Data,
		})
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   u.ChainID,
		Nonce:     u.Nonce,
		GasTipCap: u.MaxPriorityFeePerGas,
		GasFeeCap: u.MaxFeePerGas,
		Gas:       u.Gas,
		To:        u.To,
		Value:     u.Value,
		Data:      u.Data,
	})
}

// Payload returns the serialization the device signs:
// rlp([nonce, gasPrice, gas, to, value, data, chainId, 0, 0]) for legacy transactions (EIP-155),
// 0x02 || rlp([chainId, nonce, tip, feeCap, gas, to, value, data, accessList]) for fee-market ones.
// keccak256 of the payload is the signing hash.
func (u *UnsignedTx) Payload() ([]byte, error) {
	var to []byte
	if u.To != nil {
		to = u.To.Bytes()
	}

	if u.Type() == types.LegacyTxType {
		payload, err := rlp.EncodeToBytes([]any{
			u.Nonce, u.GasPrice, u.Gas, to, u.Value, u.Data, u.ChainID, uint(0), uint(0),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode legacy transaction")
		}
		return payload, nil
	}

	payload, err := rlp.EncodeToBytes([]any{
		u.ChainID, u.Nonce, u.MaxPriorityFeePerGas, u.MaxFeePerGas, u.Gas, to, u.Value, u.Data, types.AccessList{},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode fee-market transaction")
	}
	return append([]byte{types.DynamicFeeTxType}, payload...), nil
}
