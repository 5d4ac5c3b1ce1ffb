package txbuilder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/network"
)

const (
	// DefaultPriorityFee is used when a fee-market request omits maxPriorityFeePerGas.
	DefaultPriorityFee = params.GWei

	// gas limit = ceil(estimate * 1.2) + gasFloor
	gasMarginDivisor = 5
	gasFloor         = 10000

	baseFeeMultiplier = 2
)

type service struct {
	network Network
	chainID *big.Int
	nonces  *nonceTracker
}

// NewService creates a transaction builder for chainID.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(network Network, chainID *big.Int) Service {
	return &service{
		network: network,
		chainID: new(big.Int).Set(chainID),
		nonces:  newNonceTracker(),
	}
}

func (s *service) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Build completes args for from.
func (s *service) Build(ctx context.Context, args *SendTxArgs, from common.Address) (*UnsignedTx, error) {
	// 1. from must be the session account, checked before anything else
	if args.From != nil && *args.From != from {
		return nil, errors.Wrapf(wallet.ErrAddressMismatch, "from %s is not the device account %s", args.From.Hex(), from.Hex())
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	if args.ChainID != nil && args.ChainID.ToInt().Cmp(s.chainID) != 0 {
		return nil, errors.Wrapf(wallet.ErrChainMismatch, "chainId %s, connected to %s", args.ChainID.ToInt(), s.chainID)
	}

	tx := &UnsignedTx{
		ChainID: s.ChainID(),
		To:      args.To,
		Value:   new(big.Int),
		Data:    args.data(),
		from:    from,
	}
	if args.Value != nil {
		tx.Value.Set(args.Value.ToInt())
	}

	// 2. fees
	var err error
	if args.IsDynamicFee() {
		err = s.fillDynamicFees(ctx, args, tx)
	} else {
		err = s.fillGasPrice(ctx, args, tx)
	}
	if err != nil {
		return nil, err
	}

	// 3. gas limit
	if gas := args.gasLimit(); gas > 0 {
		tx.Gas = gas
	} else {
		estimate, err := s.estimateGas(ctx, from, tx)
		if err != nil {
			return nil, err
		}
		tx.EstimatedGas = estimate
		tx.Gas = WithGasMargin(estimate)
	}

	// 4. nonce, last so a failed estimate does not consume a reservation
	if args.Nonce != nil {
		tx.Nonce = uint64(*args.Nonce)
	} else {
		nonce, err := s.nonces.reserve(ctx, s.network, from)
		if err != nil {
			return nil, err
		}
		tx.Nonce = nonce
		tx.reserved = true
	}

	log.Debug().
		Str("from", from.Hex()).
		Uint8("type", tx.Type()).
		Uint64("nonce", tx.Nonce).
		Uint64("gas", tx.Gas).
		Uint64("estimated_gas", tx.EstimatedGas).
		Msg("Built unsigned transaction")

	return tx, nil
}

func (s *service) Release(tx *UnsignedTx) {
	if tx == nil || !tx.reserved {
		return
	}
	tx.reserved = false
	s.nonces.release(tx.from, tx.Nonce)
}

func (s *service) fillGasPrice(ctx context.Context, args *SendTxArgs, tx *UnsignedTx) error {
	if args.GasPrice != nil {
		tx.GasPrice = new(big.Int).Set(args.GasPrice.ToInt())
		return nil
	}

	gasPrice, err := s.network.GasPrice(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get gas price")
	}
	tx.GasPrice = gasPrice
	return nil
}

func (s *service) fillDynamicFees(ctx context.Context, args *SendTxArgs, tx *UnsignedTx) error {
	tip := big.NewInt(DefaultPriorityFee)
	defaultedTip := args.MaxPriorityFeePerGas == nil
	if !defaultedTip {
		tip = new(big.Int).Set(args.MaxPriorityFeePerGas.ToInt())
	}

	var maxFee *big.Int
	if args.MaxFeePerGas != nil {
		maxFee = new(big.Int).Set(args.MaxFeePerGas.ToInt())
	} else {
		baseFee, err := s.network.LatestBaseFee(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get base fee")
		}
		if baseFee == nil {
			return errors.Wrap(wallet.ErrUnsupportedChain, "network does not support fee-market transactions")
		}
		// maxFee = baseFee * 2 + tip
		maxFee = new(big.Int).Mul(baseFee, big.NewInt(baseFeeMultiplier))
		maxFee.Add(maxFee, tip)
	}

	if tip.Cmp(maxFee) > 0 {
		if !defaultedTip {
			return errors.Wrapf(wallet.ErrInvalidParams, "maxPriorityFeePerGas (%s) > maxFeePerGas (%s)", tip, maxFee)
		}
		tip.Set(maxFee)
	}

	tx.MaxFeePerGas = maxFee
	tx.MaxPriorityFeePerGas = tip
	return nil
}

func (s *service) estimateGas(ctx context.Context, from common.Address, tx *UnsignedTx) (uint64, error) {
	msg := network.CallMsg{
		From:  &from,
		To:    tx.To,
		Value: (*hexutil.Big)(tx.Value),
		Data:  tx.Data,
	}
	if tx.GasPrice != nil {
		msg.GasPrice = (*hexutil.Big)(tx.GasPrice)
	} else {
		msg.MaxFeePerGas = (*hexutil.Big)(tx.MaxFeePerGas)
		msg.MaxPriorityFeePerGas = (*hexutil.Big)(tx.MaxPriorityFeePerGas)
	}

	estimate, err := s.network.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", wallet.ErrGasEstimationFailed, err)
	}
	if estimate == 0 {
		return 0, errors.Wrap(wallet.ErrGasEstimationFailed, "node estimated zero gas")
	}
	return estimate, nil
}

// WithGasMargin returns ceil(estimate * 1.2) + 10000.
func WithGasMargin(estimate uint64) uint64 {
	return estimate + (estimate+gasMarginDivisor-1)/gasMarginDivisor + gasFloor
}
