package test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/message"
	"github/chapool/ledger-provider/internal/wallet/provider"
	"github/chapool/ledger-provider/internal/wallet/signer"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

// Bridge is a provider wired to a RecordingDevice and a devnet Node.
type Bridge struct {
	Provider *provider.Provider
	Manager  *device.Manager
	Device   *RecordingDevice
	Node     *Node
}

// NewBridge creates a provider for chain id 5 backed by test doubles.
func NewBridge(t *testing.T) *Bridge {
	t.Helper()

	node := NewDevnet(t)
	client := node.Client(t)
	manager, dev := NewDeviceManager(t)

	chainID := big.NewInt(5)
	p := provider.New(
		manager,
		client,
		txbuilder.NewService(client, chainID),
		signer.NewService(client),
		message.NewService(),
	)

	t.Cleanup(func() {
		require.NoError(t, manager.Close())
	})

	return &Bridge{
		Provider: p,
		Manager:  manager,
		Device:   dev,
		Node:     node,
	}
}
