package signer_test

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/test"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/signer"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

var recipient = common.HexToAddress("0x0000000000000000000000000000000000000abc")

func build(t *testing.T, node *test.Node, chainID int64, args *txbuilder.SendTxArgs) *txbuilder.UnsignedTx {
	t.Helper()

	tx, err := txbuilder.NewService(node.Client(t), big.NewInt(chainID)).Build(t.Context(), args, test.TestAddress)
	require.NoError(t, err)
	return tx
}

func TestSignAndSendRoundTrip(t *testing.T) {
	tip := (*hexutil.Big)(big.NewInt(2))
	for name, args := range map[string]*txbuilder.SendTxArgs{
		"legacy":     {To: &recipient},
		"fee market": {To: &recipient, MaxPriorityFeePerGas: tip},
	} {
		for _, chainID := range []int64{5, 137} {
			t.Run(fmt.Sprintf("%s chain %d", name, chainID), func(t *testing.T) {
				node := test.NewDevnet(t)
				manager, dev := test.NewDeviceManager(t)
				session, err := manager.Open(t.Context())
				require.NoError(t, err)

				unsigned := build(t, node, chainID, args)
				res, err := signer.NewService(node.Client(t)).SignAndSend(t.Context(), session, unsigned)
				require.NoError(t, err)

				// the node got exactly what was signed
				var sent types.Transaction
				require.NoError(t, sent.UnmarshalBinary(node.SentTransaction(t)))
				assert.Equal(t, res.Transaction.Hash(), sent.Hash())
				assert.Equal(t, sent.Hash(), res.TxHash)

				sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(chainID)), &sent)
				require.NoError(t, err)
				assert.Equal(t, test.TestAddress, sender)
				assert.Equal(t, unsigned.Type(), sent.Type())
				assert.Equal(t, big.NewInt(chainID), sent.ChainId())
				assert.Equal(t, unsigned.Gas, sent.Gas())
				assert.Equal(t, unsigned.Nonce, sent.Nonce())

				// the device got bare hex of the unsigned payload
				payload, err := unsigned.Payload()
				require.NoError(t, err)
				calls := dev.Calls()
				require.Equal(t, 1, dev.CallCount(device.OpSignTransaction))
				call := calls[len(calls)-1]
				assert.False(t, strings.HasPrefix(call.Payload, "0x"))
				assert.Equal(t, hex.EncodeToString(payload), call.Payload)
			})
		}
	}
}

func TestSignAndSendPassesPopulatedResolution(t *testing.T) {
	node := test.NewDevnet(t)
	manager, dev := test.NewDeviceManager(t)
	session, err := manager.Open(t.Context())
	require.NoError(t, err)

	_, err = signer.NewService(node.Client(t)).SignAndSend(t.Context(), session, build(t, node, 5, &txbuilder.SendTxArgs{To: &recipient}))
	require.NoError(t, err)

	calls := dev.Calls()
	resolution := calls[len(calls)-1].Resolution
	require.NotNil(t, resolution)
	assert.NotNil(t, resolution.ERC20Tokens)
	assert.NotNil(t, resolution.NFTs)
	assert.NotNil(t, resolution.ExternalPlugin)
	assert.NotNil(t, resolution.Plugin)
	assert.NotNil(t, resolution.Domains)
}

func TestSignAndSendUserRejected(t *testing.T) {
	node := test.NewDevnet(t)
	manager, dev := test.NewDeviceManager(t)
	session, err := manager.Open(t.Context())
	require.NoError(t, err)
	dev.Reject = true

	_, err = signer.NewService(node.Client(t)).SignAndSend(t.Context(), session, build(t, node, 5, &txbuilder.SendTxArgs{To: &recipient}))
	require.ErrorIs(t, err, wallet.ErrUserRejectedOnDevice)
	require.NotErrorIs(t, err, wallet.ErrBroadcastFailed)
	assert.Zero(t, node.CallCount("eth_sendRawTransaction"))
}

func TestSignAndSendBroadcastFailureIsNotRetried(t *testing.T) {
	node := test.NewDevnet(t)
	node.Fail("eth_sendRawTransaction", -32000, "nonce too low")
	manager, dev := test.NewDeviceManager(t)
	session, err := manager.Open(t.Context())
	require.NoError(t, err)

	_, err = signer.NewService(node.Client(t)).SignAndSend(t.Context(), session, build(t, node, 5, &txbuilder.SendTxArgs{To: &recipient}))

	require.ErrorIs(t, err, wallet.ErrBroadcastFailed)
	var rpcErr *wallet.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, 1, node.CallCount("eth_sendRawTransaction"))
	assert.Equal(t, 1, dev.CallCount(device.OpSignTransaction))
}

type wrongAccount struct {
	*device.Session
}

func (wrongAccount) Address() common.Address {
	return common.HexToAddress("0x0000000000000000000000000000000000000001")
}

func TestSignAndSendVerifiesSigner(t *testing.T) {
	node := test.NewDevnet(t)
	manager, _ := test.NewDeviceManager(t)
	session, err := manager.Open(t.Context())
	require.NoError(t, err)

	_, err = signer.NewService(node.Client(t)).SignAndSend(t.Context(), wrongAccount{session}, build(t, node, 5, &txbuilder.SendTxArgs{To: &recipient}))
	require.ErrorIs(t, err, wallet.ErrAddressMismatch)
	assert.Zero(t, node.CallCount("eth_sendRawTransaction"))
}
