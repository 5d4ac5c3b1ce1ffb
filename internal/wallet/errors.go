package wallet

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTransportUnavailable is returned when the platform lacks the device access API.
	ErrTransportUnavailable = errors.New("hardware transport unavailable")
	// ErrSessionOpenFailed is returned when the device is absent, locked or running the wrong app.
	ErrSessionOpenFailed = errors.New("failed to open device session")
	// ErrSessionClosed is returned by a session handle used after its manager was closed.
	ErrSessionClosed = errors.New("device session closed")
	// ErrAddressMismatch is returned when a from/signer address differs from the session address.
	ErrAddressMismatch = errors.New("address does not match device account")
	// ErrGasEstimationFailed is returned when no usable gas limit could be determined.
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	// ErrUnsupportedMethod is returned for provider methods outside the dispatch table.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrUnsupportedChain is returned when a chain switch targets another network.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrChainMismatch is returned when a transaction names a chain id other than the configured one.
	ErrChainMismatch = errors.New("transaction chain id does not match configured chain")
	// ErrUserRejectedOnDevice is returned when the user declines on the physical device.
	ErrUserRejectedOnDevice = errors.New("user rejected the request on the device")
	// ErrDevicePending is returned to a caller that stopped waiting while its device
	// operation is still in flight. The operation must not be re-issued.
	ErrDevicePending = errors.New("device operation still pending")
	// ErrBroadcastFailed marks a failed eth_sendRawTransaction. The node may still
	// have accepted the transaction, so its nonce stays spent.
	ErrBroadcastFailed = errors.New("failed to broadcast transaction")
	// ErrNetworkTimeout is returned when a JSON-RPC call exceeds its deadline.
	ErrNetworkTimeout = errors.New("network request timed out")
	// ErrInvalidParams is returned when request parameters cannot be decoded.
	ErrInvalidParams = errors.New("invalid params")
)

// RPCError is a failed JSON-RPC exchange: either a non-2xx HTTP status or an error
// object in the response payload.
type RPCError struct {
	Method     string
	StatusCode int
	Code       int
	Message    string
	Data       any
}

func (e *RPCError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rpc %s failed: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("rpc %s failed: HTTP %d: %s", e.Method, e.StatusCode, e.Message)
}
