package signer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

type service struct {
	broadcaster Broadcaster
}

// NewService creates a new SignerService
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(broadcaster Broadcaster) Service {
	return &service{
		broadcaster: broadcaster,
	}
}

// SignAndSend signs an EVM transaction on the device and broadcasts it
func (s *service) SignAndSend(ctx context.Context, session Session, tx *txbuilder.UnsignedTx) (*SignEVMResponse, error) {
	payload, err := tx.Payload()
	if err != nil {
		return nil, err
	}

	// The device takes bare hex and always a fully populated resolution.
	rawTxHex := strings.TrimPrefix(hexutil.Encode(payload), "0x")

	log.Info().
		Str("from", session.Address().Hex()).
		Uint64("nonce", tx.Nonce).
		Msg("Confirm the transaction on the device")

	sig, err := session.SignTransaction(ctx, rawTxHex, wallet.NewResolution())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	signedTx, err := assemble(tx, sig)
	if err != nil {
		return nil, err
	}

	// Verify the device signed with the session account
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainID), signedTx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to recover transaction sender")
	}
	if sender != session.Address() {
		return nil, errors.Wrapf(wallet.ErrAddressMismatch, "device signed as %s, session account is %s", sender.Hex(), session.Address().Hex())
	}

	txBytes, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	txHash, err := s.broadcaster.SendRawTransaction(ctx, txBytes)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: %w", wallet.ErrBroadcastFailed, err))
	}
	if txHash != signedTx.Hash() {
		log.Warn().
			Str("tx_hash", signedTx.Hash().Hex()).
			Str("node_hash", txHash.Hex()).
			Msg("Node reported a different transaction hash")
	}

	log.Info().
		Str("tx_hash", txHash.Hex()).
		Uint64("nonce", tx.Nonce).
		Msg("Transaction broadcast")

	return &SignEVMResponse{
		Transaction:    signedTx,
		RawTransaction: txBytes,
		TxHash:         txHash,
	}, nil
}
