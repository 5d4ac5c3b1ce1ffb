package txbuilder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/ledger-provider/internal/wallet/network"
)

// Service turns partial eth_sendTransaction requests into complete unsigned transactions.
type Service interface {
	// Build fills in every missing field of args for the session account from.
	Build(ctx context.Context, args *SendTxArgs, from common.Address) (*UnsignedTx, error)
	// Release returns the nonce reserved for tx after signing or broadcast failed.
	Release(tx *UnsignedTx)
	// ChainID returns the chain transactions are built for.
	ChainID() *big.Int
}

// Network is the part of the network forwarder the builder consults.
type Network interface {
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	LatestBaseFee(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg network.CallMsg) (uint64, error)
}

var _ Network = (*network.Client)(nil)
