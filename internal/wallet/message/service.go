package message

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/wallet"
)

const recoveryBase = 27

type service struct{}

// NewService creates a new personal message signer
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService() Service {
	return &service{}
}

func (s *service) SignPersonal(ctx context.Context, session Session, message string, expected *common.Address) (string, error) {
	if expected != nil && *expected != session.Address() {
		return "", errors.Wrapf(wallet.ErrAddressMismatch, "address %s is not the device account %s", expected.Hex(), session.Address().Hex())
	}

	payload, err := Normalize(message)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("address", session.Address().Hex()).
		Int("length", len(payload)).
		Msg("Confirm the message on the device")

	sig, err := session.SignPersonalMessage(ctx, payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign message")
	}

	raw := sig.Bytes()
	switch raw[crypto.RecoveryIDOffset] {
	case 0, 1:
		raw[crypto.RecoveryIDOffset] += recoveryBase
	case recoveryBase, recoveryBase + 1:
	default:
		return "", errors.Errorf("unexpected signature v %d", sig.V)
	}

	if err := verify(payload, raw, session.Address()); err != nil {
		return "", err
	}

	return hexutil.Encode(raw), nil
}

// Normalize converts a personal_sign message to the bytes signed: 0x prefixed
// input is decoded as hex, anything else is taken as UTF-8 text.
func Normalize(message string) ([]byte, error) {
	if !strings.HasPrefix(message, "0x") && !strings.HasPrefix(message, "0X") {
		return []byte(message), nil
	}

	payload, err := hexutil.Decode("0x" + message[2:])
	if err != nil {
		return nil, errors.Wrapf(wallet.ErrInvalidParams, "message is not valid hex: %v", err)
	}
	return payload, nil
}

func verify(payload []byte, sig []byte, address common.Address) error {
	recoverable := common.CopyBytes(sig)
	recoverable[crypto.RecoveryIDOffset] -= recoveryBase

	pub, err := crypto.SigToPub(accounts.TextHash(payload), recoverable)
	if err != nil {
		return errors.Wrap(err, "failed to recover message signer")
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != address {
		return errors.Wrapf(wallet.ErrAddressMismatch, "device signed as %s, session account is %s", signer.Hex(), address.Hex())
	}
	return nil
}
