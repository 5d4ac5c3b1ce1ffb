package network

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/wallet"
)

// DefaultTimeout bounds every JSON-RPC call unless configured otherwise.
const DefaultTimeout = 15 * time.Second

// Client is a JSON-RPC 2.0 over HTTP client for the configured network.
// It is stateless and safe for concurrent use. Calls are never retried.
type Client struct {
	url     string
	rpc     *rpc.Client
	timeout time.Duration
}

// NewClient creates a client for url. No connection is made until the first call.
func NewClient(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, errors.New("RPC URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create RPC client")
	}

	return &Client{
		url:     url,
		rpc:     client,
		timeout: timeout,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.rpc.Close()
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.url
}

// Call forwards method with its positional params verbatim and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	args, err := positionalParams(params)
	if err != nil {
		return nil, err
	}

	var result json.RawMessage
	if err := c.call(ctx, &result, method, args...); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	return result, nil
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.call(ctx, &result, MethodChainID); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// PendingNonceAt returns the pending nonce for the given address.
func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, &result, MethodGetTransactionCount, address, "pending"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// GasPrice returns the current legacy gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.call(ctx, &result, MethodGasPrice); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// LatestBaseFee returns the base fee of the latest block, or nil on networks without one.
func (c *Client) LatestBaseFee(ctx context.Context) (*big.Int, error) {
	var head *blockHeader
	if err := c.call(ctx, &head, MethodGetBlockByNumber, "latest", false); err != nil {
		return nil, err
	}
	if head == nil {
		return nil, errors.New("latest block not found")
	}
	if head.BaseFee == nil {
		return nil, nil
	}
	return head.BaseFee.ToInt(), nil
}

// EstimateGas returns the node's gas estimate for msg.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, &result, MethodEstimateGas, msg); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// SendRawTransaction broadcasts a signed transaction and returns the hash reported by the node.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	var result common.Hash
	if err := c.call(ctx, &result, MethodSendRawTransaction, hexutil.Bytes(rawTx)); err != nil {
		return common.Hash{}, err
	}
	return result, nil
}

// TransactionReceipt returns the receipt of txHash, or nil while the transaction is pending or unknown.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := c.call(ctx, &receipt, MethodGetTransactionReceipt, txHash); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	err := c.rpc.CallContext(callCtx, result, method, args...)

	log.Debug().
		Str("method", method).
		Dur("elapsed", time.Since(started)).
		Err(err).
		Msg("RPC call")

	if err != nil {
		return c.wrapError(callCtx, method, err)
	}
	return nil
}

func (c *Client) wrapError(callCtx context.Context, method string, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(wallet.ErrNetworkTimeout, "%s after %s", method, c.timeout)
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		message := httpErr.Status
		if len(httpErr.Body) > 0 {
			message = string(httpErr.Body)
		}
		return &wallet.RPCError{
			Method:     method,
			StatusCode: httpErr.StatusCode,
			Message:    message,
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		wrapped := &wallet.RPCError{
			Method:     method,
			StatusCode: http.StatusOK,
			Code:       rpcErr.ErrorCode(),
			Message:    rpcErr.Error(),
		}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			wrapped.Data = dataErr.ErrorData()
		}
		return wrapped
	}

	return errors.Wrapf(err, "rpc %s failed", method)
}

// positionalParams splits a JSON array into individually encoded arguments.
func positionalParams(params json.RawMessage) ([]any, error) {
	trimmed := string(params)
	if len(params) == 0 || trimmed == "null" {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, errors.Wrap(wallet.ErrInvalidParams, "params must be a JSON array")
	}

	args := make([]any, len(raw))
	for i, param := range raw {
		args[i] = param
	}
	return args, nil
}
