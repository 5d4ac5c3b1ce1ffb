package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/network"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

// Service provides transaction signing on the device and broadcast
type Service interface {
	// SignAndSend signs tx with the device account and broadcasts it. It never retries.
	SignAndSend(ctx context.Context, session Session, tx *txbuilder.UnsignedTx) (*SignEVMResponse, error)
}

// Session is the device account signing the transaction.
type Session interface {
	Address() common.Address
	SignTransaction(ctx context.Context, rawTxHex string, resolution wallet.Resolution) (wallet.Signature, error)
}

// Broadcaster submits signed transactions to the network.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
}

var (
	_ Session     = (*device.Session)(nil)
	_ Broadcaster = (*network.Client)(nil)
)

// SignEVMResponse represents a signed and broadcast EVM transaction
type SignEVMResponse struct {
	Transaction    *types.Transaction // Signed transaction
	RawTransaction []byte             // Signed transaction in its network encoding
	TxHash         common.Hash        // Transaction hash as reported by the node
}
