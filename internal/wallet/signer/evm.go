package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

const (
	legacyRecoveryBase = 27
	eip155Offset       = 35
)

// assemble combines the unsigned transaction with the device signature.
func assemble(tx *txbuilder.UnsignedTx, sig wallet.Signature) (*types.Transaction, error) {
	parity, err := recoveryID(tx.Type(), tx.ChainID, sig.V)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, 65)
	raw = append(raw, sig.R[:]...)
	raw = append(raw, sig.S[:]...)
	raw = append(raw, parity)

	signed, err := tx.Tx().WithSignature(types.LatestSignerForChainID(tx.ChainID), raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to attach signature")
	}
	return signed, nil
}

// recoveryID reduces the v returned by the device to the y-parity bit.
//
// For legacy transactions the device returns chainId*2+35+parity, truncated to
// a single byte for chain ids above 109. Typed transactions carry the parity
// itself, some firmware versions answer 27/28.
func recoveryID(txType uint8, chainID *big.Int, v uint64) (byte, error) {
	if txType == types.LegacyTxType {
		base := new(big.Int).Mul(chainID, big.NewInt(2))
		base.Add(base, big.NewInt(eip155Offset))

		if full := new(big.Int).SetUint64(v); full.Cmp(base) >= 0 {
			if parity := full.Sub(full, base); parity.IsUint64() && parity.Uint64() <= 1 {
				return byte(parity.Uint64()), nil
			}
		}
		//nolint:gosec // truncation mirrors the device encoding
		if parity := byte(v) - byte(base.Uint64()); parity <= 1 {
			return parity, nil
		}
	}

	switch v {
	case 0, 1:
		return byte(v), nil
	case legacyRecoveryBase, legacyRecoveryBase + 1:
		return byte(v - legacyRecoveryBase), nil
	}
	return 0, errors.Errorf("unexpected signature v %d for chain %s", v, chainID)
}
