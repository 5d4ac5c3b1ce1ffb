package rpc

import (
	"encoding/json"

	"github/chapool/ledger-provider/internal/wallet/provider"
)

const version = "2.0"

// JSON-RPC envelope error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *provider.Error `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

func errorResponse(id json.RawMessage, code int, message string) response {
	if len(id) == 0 {
		id = nullID
	}
	return response{
		JSONRPC: version,
		ID:      id,
		Error:   &provider.Error{Code: code, Message: message},
	}
}
