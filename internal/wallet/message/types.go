package message

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/device"
)

// Service signs personal messages (EIP-191 version 0x45) with the device account.
type Service interface {
	// SignPersonal signs message and returns the 65 byte r || s || v signature as 0x hex.
	// A non-nil expected address must be the session account.
	SignPersonal(ctx context.Context, session Session, message string, expected *common.Address) (string, error)
}

// Session is the device account signing the message.
type Session interface {
	Address() common.Address
	SignPersonalMessage(ctx context.Context, message []byte) (wallet.Signature, error)
}

var _ Session = (*device.Session)(nil)
