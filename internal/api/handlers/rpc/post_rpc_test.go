package rpc_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/test"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func call(t *testing.T, s *api.Server, body string) rpcResponse {
	t.Helper()

	res := test.PerformRequest(t, s, http.MethodPost, "/", body, nil)
	require.Equal(t, http.StatusOK, res.Result().StatusCode)

	var out rpcResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	assert.Equal(t, "2.0", out.JSONRPC)
	return out
}

func TestPostRPCChainID(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":7,"method":"eth_chainId"}`)

		require.Nil(t, res.Error)
		assert.JSONEq(t, `7`, string(res.ID))
		assert.JSONEq(t, `"0x5"`, string(res.Result))
	})
}

func TestPostRPCStringID(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":"abc","method":"eth_chainId"}`)
		assert.JSONEq(t, `"abc"`, string(res.ID))
	})
}

func TestPostRPCSwitchChainResultIsNull(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"wallet_switchEthereumChain","params":[{"chainId":"0x5"}]}`)

		require.Nil(t, res.Error)
		assert.Equal(t, "null", string(res.Result))
	})
}

func TestPostRPCAccounts(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"eth_requestAccounts"}`)
		require.Nil(t, res.Error)

		var accounts []common.Address
		require.NoError(t, json.Unmarshal(res.Result, &accounts))
		assert.Equal(t, []common.Address{test.TestAddress}, accounts)
		assert.Equal(t, 1, b.Device.CallCount("get_address"))
	})
}

func TestPostRPCSendTransaction(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"eth_sendTransaction","params":[{
			"from":"`+test.TestAddress.Hex()+`",
			"to":"0x00000000000000000000000000000000000000aa",
			"value":"0x1"
		}]}`)
		require.Nil(t, res.Error)

		var hash common.Hash
		require.NoError(t, json.Unmarshal(res.Result, &hash))

		var tx types.Transaction
		require.NoError(t, tx.UnmarshalBinary(b.Node.SentTransaction(t)))
		assert.Equal(t, tx.Hash(), hash)
		assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	})
}

func TestPostRPCPersonalSignMismatch(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"personal_sign","params":["0x68656c6c6f","0x00000000000000000000000000000000000000bb"]}`)

		require.NotNil(t, res.Error)
		assert.Equal(t, provider.CodeUnauthorized, res.Error.Code)
		assert.Zero(t, b.Device.CallCount("sign_personal_message"))
	})
}

func TestPostRPCUnsupportedMethod(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		res := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"eth_signTypedData_v4","params":[]}`)

		require.NotNil(t, res.Error)
		assert.Equal(t, provider.CodeUnsupportedMethod, res.Error.Code)
		assert.Nil(t, res.Result)
		assert.Empty(t, b.Node.Calls())
	})
}

func TestPostRPCNodeErrorPassthrough(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		b.Node.Fail("eth_call", 3, "execution reverted")

		res := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"eth_call","params":[{"to":"0x00000000000000000000000000000000000000aa"},"latest"]}`)

		require.NotNil(t, res.Error)
		assert.Equal(t, 3, res.Error.Code)
		assert.Contains(t, res.Error.Message, "execution reverted")
	})
}

func TestPostRPCBatchPreservesOrder(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := test.PerformRequest(t, s, http.MethodPost, "/", `[
			{"jsonrpc":"2.0","id":1,"method":"eth_chainId"},
			{"jsonrpc":"2.0","id":2,"method":"eth_sign"},
			{"jsonrpc":"2.0","id":3,"method":"eth_gasPrice"}
		]`, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var out []rpcResponse
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
		require.Len(t, out, 3)

		assert.JSONEq(t, `1`, string(out[0].ID))
		assert.JSONEq(t, `"0x5"`, string(out[0].Result))

		assert.JSONEq(t, `2`, string(out[1].ID))
		require.NotNil(t, out[1].Error)
		assert.Equal(t, provider.CodeUnsupportedMethod, out[1].Error.Code)

		assert.JSONEq(t, `3`, string(out[2].ID))
		assert.JSONEq(t, `"0x3b9aca00"`, string(out[2].Result))
	})
}

func TestPostRPCMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{"jsonrpc":`, -32700},
		{"invalid batch json", `[{"jsonrpc":"2.0"`, -32700},
		{"empty batch", `[]`, -32600},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, -32600},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"eth_chainId"}`, -32600},
	}

	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := call(t, s, tt.body)
				require.NotNil(t, res.Error)
				assert.Equal(t, tt.code, res.Error.Code)
			})
		}
	})
}

func TestPostRPCRequestIDHeader(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := test.PerformRequest(t, s, http.MethodPost, "/", `{"jsonrpc":"2.0","id":1,"method":"eth_chainId"}`, nil)
		id := res.Header().Get("X-Request-Id")
		assert.Len(t, id, 36)
		assert.Equal(t, 4, strings.Count(id, "-"))
	})
}
