package provider_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/test"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

func request(t *testing.T, b *test.Bridge, method string, params string) (json.RawMessage, *provider.Error) {
	t.Helper()

	req := provider.Request{Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}

	result, err := b.Provider.Request(t.Context(), req)
	if err != nil {
		var providerErr *provider.Error
		require.ErrorAs(t, err, &providerErr)
		return nil, providerErr
	}
	return result, nil
}

func TestChainID(t *testing.T) {
	b := test.NewBridge(t)

	result, err := request(t, b, "eth_chainId", "")
	require.Nil(t, err)
	assert.JSONEq(t, `"0x5"`, string(result))
	assert.Empty(t, b.Device.Calls(), "chain id is answered locally")
	assert.Empty(t, b.Node.Calls())
}

func TestAccountsOpensSessionOnce(t *testing.T) {
	b := test.NewBridge(t)

	for _, method := range []string{"eth_requestAccounts", "eth_accounts", "eth_accounts"} {
		result, err := request(t, b, method, "")
		require.Nil(t, err)

		var accounts []common.Address
		require.NoError(t, json.Unmarshal(result, &accounts))
		assert.Equal(t, []common.Address{test.TestAddress}, accounts)
	}
	assert.Equal(t, 1, b.Device.CallCount("get_address"))
}

func TestSwitchChain(t *testing.T) {
	b := test.NewBridge(t)

	result, err := request(t, b, "wallet_switchEthereumChain", `[{"chainId":"0x5"}]`)
	require.Nil(t, err)
	assert.Equal(t, "null", string(result))
}

func TestSwitchChainMismatchIsRejected(t *testing.T) {
	b := test.NewBridge(t)

	_, err := request(t, b, "eth_accounts", "")
	require.Nil(t, err)

	_, err = request(t, b, "wallet_switchEthereumChain", `[{"chainId":"0x1"}]`)
	require.NotNil(t, err)
	assert.Equal(t, provider.CodeUnrecognizedChain, err.Code)
	require.ErrorIs(t, err, wallet.ErrUnsupportedChain)

	// nothing changed
	result, err := request(t, b, "eth_chainId", "")
	require.Nil(t, err)
	assert.JSONEq(t, `"0x5"`, string(result))

	result, err = request(t, b, "eth_accounts", "")
	require.Nil(t, err)
	assert.JSONEq(t, `["`+strings.ToLower(test.TestAddress.Hex())+`"]`, string(result))
	assert.Equal(t, 1, b.Device.CallCount("get_address"))
}

func TestSwitchChainInvalidParams(t *testing.T) {
	b := test.NewBridge(t)

	_, err := request(t, b, "wallet_switchEthereumChain", `[]`)
	require.NotNil(t, err)
	assert.Equal(t, provider.CodeInvalidParams, err.Code)
}

func TestUnsupportedMethod(t *testing.T) {
	b := test.NewBridge(t)

	for _, method := range []string{"eth_signTypedData_v4", "eth_sign", "eth_sendRawTransaction", "wallet_addEthereumChain", ""} {
		_, err := request(t, b, method, "[]")
		require.NotNil(t, err, method)
		assert.Equal(t, provider.CodeUnsupportedMethod, err.Code, method)
		require.ErrorIs(t, err, wallet.ErrUnsupportedMethod)
	}
	assert.Empty(t, b.Node.Calls())
	assert.Empty(t, b.Device.Calls())
}

func TestForwardedRead(t *testing.T) {
	b := test.NewBridge(t)
	b.Node.Result("eth_getBalance", "0x1")

	result, err := request(t, b, "eth_getBalance", `["0x0000000000000000000000000000000000000abc","latest"]`)
	require.Nil(t, err)
	assert.JSONEq(t, `"0x1"`, string(result))
	assert.Equal(t, 1, b.Node.CallCount("eth_getBalance"))
	assert.Empty(t, b.Device.Calls(), "reads never touch the device")
}

func TestForwardedReadNodeError(t *testing.T) {
	b := test.NewBridge(t)
	b.Node.Handle("eth_call", func([]json.RawMessage) (any, *test.NodeError) {
		return nil, &test.NodeError{Code: 3, Message: "execution reverted", Data: "0x08c379a0"}
	})

	_, err := request(t, b, "eth_call", `[{"to":"0x0000000000000000000000000000000000000abc"},"latest"]`)
	require.NotNil(t, err)
	assert.Equal(t, 3, err.Code)
	assert.Equal(t, "0x08c379a0", err.Data)

	var rpcErr *wallet.RPCError
	require.ErrorAs(t, err, &rpcErr)
}

func TestSendTransaction(t *testing.T) {
	b := test.NewBridge(t)
	b.Node.Result("eth_estimateGas", "0x5208")

	result, err := request(t, b, "eth_sendTransaction",
		`[{"from":"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266","to":"0x0000000000000000000000000000000000000abc","value":"0x0","data":"0x"}]`)
	require.Nil(t, err)

	var sent types.Transaction
	require.NoError(t, sent.UnmarshalBinary(b.Node.SentTransaction(t)))

	var hash common.Hash
	require.NoError(t, json.Unmarshal(result, &hash))
	assert.Equal(t, sent.Hash(), hash)
	assert.Equal(t, uint8(types.LegacyTxType), sent.Type())
	assert.Equal(t, uint64(35200), sent.Gas())
	assert.Equal(t, int64(1_000_000_000), sent.GasPrice().Int64())
}

func TestSendTransactionFromMismatch(t *testing.T) {
	b := test.NewBridge(t)

	_, err := request(t, b, "eth_sendTransaction",
		`[{"from":"0x0000000000000000000000000000000000000001","to":"0x0000000000000000000000000000000000000abc"}]`)
	require.NotNil(t, err)
	assert.Equal(t, provider.CodeUnauthorized, err.Code)
	assert.Zero(t, b.Device.CallCount(device.OpSignTransaction))
	assert.Empty(t, b.Node.Calls())
}

func TestSendTransactionGasEstimationFailed(t *testing.T) {
	b := test.NewBridge(t)
	b.Node.Result("eth_estimateGas", "0x0")

	_, err := request(t, b, "eth_sendTransaction", `[{"to":"0x0000000000000000000000000000000000000abc"}]`)
	require.NotNil(t, err)
	require.ErrorIs(t, err, wallet.ErrGasEstimationFailed)
	assert.Equal(t, provider.CodeInternal, err.Code)
	assert.Zero(t, b.Device.CallCount(device.OpSignTransaction), "no device call without a usable gas limit")
}

func TestSendTransactionUserRejected(t *testing.T) {
	b := test.NewBridge(t)
	b.Device.Reject = true

	_, err := request(t, b, "eth_sendTransaction", `[{"to":"0x0000000000000000000000000000000000000abc"}]`)
	require.NotNil(t, err)
	assert.Equal(t, provider.CodeUserRejected, err.Code)
	assert.Zero(t, b.Node.CallCount("eth_sendRawTransaction"))

	// the rejected nonce is reused by the next request
	b.Device.Reject = false
	_, err = request(t, b, "eth_sendTransaction", `[{"to":"0x0000000000000000000000000000000000000abc"}]`)
	require.Nil(t, err)

	var sent types.Transaction
	require.NoError(t, sent.UnmarshalBinary(b.Node.SentTransaction(t)))
	assert.Equal(t, uint64(0), sent.Nonce())
}

func TestSendTransactionBroadcastFailureKeepsNonce(t *testing.T) {
	b := test.NewBridge(t)

	// a gateway times out after the node may already hold the transaction
	var mu sync.Mutex
	attempts := 0
	b.Node.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (any, *test.NodeError) {
		mu.Lock()
		attempts++
		first := attempts == 1
		mu.Unlock()
		if first {
			return nil, &test.NodeError{Code: -32000, Message: "upstream request timeout"}
		}
		return test.AcceptRawTransaction(params)
	})

	_, err := request(t, b, "eth_sendTransaction", `[{"to":"0x0000000000000000000000000000000000000abc","value":"0x1"}]`)
	require.NotNil(t, err)
	assert.Equal(t, -32000, err.Code)

	_, err = request(t, b, "eth_sendTransaction", `[{"to":"0x0000000000000000000000000000000000000abc","value":"0x2"}]`)
	require.Nil(t, err)

	var nonces []uint64
	for _, call := range b.Node.Calls() {
		if call.Method != "eth_sendRawTransaction" {
			continue
		}
		var raw string
		require.NoError(t, json.Unmarshal(call.Params[0], &raw))
		var tx types.Transaction
		require.NoError(t, tx.UnmarshalBinary(common.FromHex(raw)))
		nonces = append(nonces, tx.Nonce())
	}
	assert.Equal(t, []uint64{0, 1}, nonces)
}

func TestConcurrentSendTransactionsAreSerialized(t *testing.T) {
	b := test.NewBridge(t)
	b.Device.Delay = 20 * time.Millisecond

	// open the session up front so both requests race for signing only
	_, perr := request(t, b, "eth_requestAccounts", "")
	require.Nil(t, perr)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Provider.Request(t.Context(), provider.Request{
				Method: "eth_sendTransaction",
				Params: json.RawMessage(`[{"to":"0x0000000000000000000000000000000000000abc"}]`),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var signs []test.DeviceCall
	for _, call := range b.Device.Calls() {
		if call.Op == device.OpSignTransaction {
			signs = append(signs, call)
		}
	}
	require.Len(t, signs, 2)
	assert.False(t, signs[1].Start.Before(signs[0].End), "second signing started before the first completed")
	assert.Zero(t, b.Device.Overlaps())

	// both were broadcast with distinct nonces
	nonces := map[uint64]bool{}
	for _, call := range b.Node.Calls() {
		if call.Method != "eth_sendRawTransaction" {
			continue
		}
		var raw string
		require.NoError(t, json.Unmarshal(call.Params[0], &raw))
		var tx types.Transaction
		require.NoError(t, tx.UnmarshalBinary(common.FromHex(raw)))
		nonces[tx.Nonce()] = true
	}
	assert.Equal(t, map[uint64]bool{0: true, 1: true}, nonces)
}

func TestPersonalSign(t *testing.T) {
	b := test.NewBridge(t)

	result, err := request(t, b, "personal_sign", `["0x68656c6c6f","0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"]`)
	require.Nil(t, err)

	var sig string
	require.NoError(t, json.Unmarshal(result, &sig))
	assert.Len(t, sig, 2+65*2)
	assert.True(t, strings.HasPrefix(sig, "0x"))
}

func TestPersonalSignAddressMismatch(t *testing.T) {
	b := test.NewBridge(t)

	_, err := request(t, b, "eth_requestAccounts", "")
	require.Nil(t, err)
	before := len(b.Device.Calls())

	_, err = request(t, b, "personal_sign", `["hello","0x0000000000000000000000000000000000000001"]`)
	require.NotNil(t, err)
	assert.Equal(t, provider.CodeUnauthorized, err.Code)
	require.ErrorIs(t, err, wallet.ErrAddressMismatch)
	assert.Len(t, b.Device.Calls(), before, "no device call on mismatch")
}

func TestPersonalSignInvalidParams(t *testing.T) {
	b := test.NewBridge(t)

	for _, params := range []string{`[]`, `{}`, `[42]`, `["hello","not an address"]`} {
		_, err := request(t, b, "personal_sign", params)
		require.NotNil(t, err, params)
		assert.Equal(t, provider.CodeInvalidParams, err.Code, params)
	}
	assert.Empty(t, b.Device.Calls())
}

func TestDeviceUnavailable(t *testing.T) {
	b := test.NewBridge(t)
	require.NoError(t, b.Manager.Close())

	manager := device.NewManager(&test.Connector{Unsupported: true}, b.Manager.Path())
	p := provider.New(manager, b.Node.Client(t), nil, nil, nil)

	_, err := p.Request(t.Context(), provider.Request{Method: "eth_accounts"})
	var providerErr *provider.Error
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, provider.CodeDisconnected, providerErr.Code)
	require.ErrorIs(t, err, wallet.ErrTransportUnavailable)
}

func TestObserverAndListeners(t *testing.T) {
	b := test.NewBridge(t)

	var kinds []provider.Kind
	b.Provider.SetObserver(func(_ string, kind provider.Kind, _ time.Duration, _ *provider.Error) {
		kinds = append(kinds, kind)
	})
	b.Provider.On("accountsChanged", func(any) {})
	b.Provider.RemoveListener("accountsChanged", func(any) {})

	_, _ = request(t, b, "eth_chainId", "")
	_, _ = request(t, b, "eth_foo", "")
	assert.Equal(t, []provider.Kind{provider.KindChainID, provider.KindUnsupported}, kinds)
}

func TestClassify(t *testing.T) {
	for _, method := range provider.Methods() {
		assert.NotEqual(t, provider.KindUnsupported, provider.Classify(string(method)), method)
	}
	assert.Equal(t, provider.KindSendTransaction, provider.Classify("eth_sendTransaction"))
	assert.Equal(t, provider.KindForwardedRead, provider.Classify("eth_getLogs"))
	assert.Equal(t, provider.KindUnsupported, provider.Classify("eth_sendRawTransaction"))
	assert.Equal(t, provider.KindUnsupported, provider.Classify("ETH_CHAINID"))
}
