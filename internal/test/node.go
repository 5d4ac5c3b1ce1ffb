package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/wallet/network"
)

// NodeHandler answers a single JSON-RPC method. A non-nil *NodeError is sent as the error member.
type NodeHandler func(params []json.RawMessage) (any, *NodeError)

// NodeError is a JSON-RPC error object returned by a NodeHandler.
type NodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NodeCall is one request received by the Node.
type NodeCall struct {
	Method string
	Params []json.RawMessage
}

type nodeRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type nodeResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *NodeError      `json:"error,omitempty"`
}

// Node is a fake Ethereum JSON-RPC endpoint with per-method handlers.
// Unknown methods are answered with -32601.
type Node struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]NodeHandler
	calls    []NodeCall
	status   int
}

// NewNode starts a node that is shut down at the end of the test.
func NewNode(t *testing.T) *Node {
	t.Helper()

	node := &Node{handlers: make(map[string]NodeHandler)}
	node.Server = httptest.NewServer(http.HandlerFunc(node.serveHTTP))
	t.Cleanup(node.Server.Close)

	return node
}

// NewDevnet starts a node preconfigured with chain id 5, a 1 gwei gas price, a
// 1 gwei base fee, nonce 0 and a 25000 gas estimate that accepts every raw transaction.
func NewDevnet(t *testing.T) *Node {
	t.Helper()

	node := NewNode(t)
	node.Result("eth_chainId", "0x5")
	node.Result("eth_gasPrice", "0x3b9aca00")
	node.Result("eth_getTransactionCount", "0x0")
	node.Result("eth_estimateGas", "0x61a8")
	node.Result("eth_getBlockByNumber", map[string]any{
		"number":        "0x10",
		"baseFeePerGas": "0x3b9aca00",
	})
	node.Handle("eth_sendRawTransaction", AcceptRawTransaction)
	return node
}

// URL returns the HTTP endpoint of the node.
func (n *Node) URL() string {
	return n.Server.URL
}

// Client returns a network client for the node, closed at the end of the test.
func (n *Node) Client(t *testing.T) *network.Client {
	t.Helper()

	client, err := network.NewClient(t.Context(), n.URL(), time.Second)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

// Handle registers fn for method, replacing any previous handler.
func (n *Node) Handle(method string, fn NodeHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.handlers[method] = fn
}

// Result makes method always return result.
func (n *Node) Result(method string, result any) {
	n.Handle(method, func([]json.RawMessage) (any, *NodeError) {
		return result, nil
	})
}

// Fail makes method always return a JSON-RPC error.
func (n *Node) Fail(method string, code int, message string) {
	n.Handle(method, func([]json.RawMessage) (any, *NodeError) {
		return nil, &NodeError{Code: code, Message: message}
	})
}

// FailHTTP makes every request fail with the given HTTP status.
func (n *Node) FailHTTP(status int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.status = status
}

// Calls returns a snapshot of the received requests in arrival order.
func (n *Node) Calls() []NodeCall {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]NodeCall(nil), n.calls...)
}

// CallCount returns how many times method was requested.
func (n *Node) CallCount(method string) int {
	count := 0
	for _, call := range n.Calls() {
		if call.Method == method {
			count++
		}
	}
	return count
}

// LastParams returns the params of the most recent request for method.
func (n *Node) LastParams(t *testing.T, method string) []json.RawMessage {
	t.Helper()

	calls := n.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i].Params
		}
	}
	require.FailNowf(t, "method not called", "%s was never requested", method)
	return nil
}

// SentTransaction decodes the raw transaction of the last eth_sendRawTransaction request.
func (n *Node) SentTransaction(t *testing.T) []byte {
	t.Helper()

	params := n.LastParams(t, "eth_sendRawTransaction")
	require.Len(t, params, 1)

	var raw hexutil.Bytes
	require.NoError(t, json.Unmarshal(params[0], &raw))
	return raw
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	status := n.status
	n.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var batch []nodeRequest
	if err := json.Unmarshal(body, &batch); err == nil {
		responses := make([]nodeResponse, len(batch))
		for i, req := range batch {
			responses[i] = n.answer(req)
		}
		writeJSON(w, responses)
		return
	}

	var req nodeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, n.answer(req))
}

func (n *Node) answer(req nodeRequest) nodeResponse {
	n.mu.Lock()
	n.calls = append(n.calls, NodeCall{Method: req.Method, Params: req.Params})
	handler, ok := n.handlers[req.Method]
	n.mu.Unlock()

	res := nodeResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		res.Error = &NodeError{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}
		return res
	}

	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		res.Error = rpcErr
		return res
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	res.Result = result
	return res
}

// AcceptRawTransaction answers with the hash of the submitted transaction.
func AcceptRawTransaction(params []json.RawMessage) (any, *NodeError) {
	if len(params) != 1 {
		return nil, &NodeError{Code: -32602, Message: "missing value for required argument 0"}
	}
	var raw hexutil.Bytes
	if err := json.Unmarshal(params[0], &raw); err != nil {
		return nil, &NodeError{Code: -32602, Message: err.Error()}
	}
	return crypto.Keccak256Hash(raw), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
