package provider

import (
	"fmt"

	"github.com/pkg/errors"
	"github/chapool/ledger-provider/internal/wallet"
)

// EIP-1193 and JSON-RPC error codes.
const (
	CodeUserRejected        = 4001
	CodeUnauthorized        = 4100
	CodeUnsupportedMethod   = 4200
	CodeDisconnected        = 4900
	CodeChainDisconnected   = 4901
	CodeUnrecognizedChain   = 4902
	CodeResourceUnavailable = -32002
	CodeInvalidParams       = -32602
	CodeInternal            = -32603
)

// Error is a rejected provider request.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// ToError maps err onto the provider error a wallet would reject with.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}

	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr
	}

	e := &Error{Code: CodeInternal, Message: err.Error(), cause: err}

	var rpcErr *wallet.RPCError
	hasRPCErr := errors.As(err, &rpcErr)

	switch {
	case errors.Is(err, wallet.ErrUserRejectedOnDevice):
		e.Code = CodeUserRejected
	case errors.Is(err, wallet.ErrAddressMismatch):
		e.Code = CodeUnauthorized
	case errors.Is(err, wallet.ErrUnsupportedMethod):
		e.Code = CodeUnsupportedMethod
	case errors.Is(err, wallet.ErrTransportUnavailable),
		errors.Is(err, wallet.ErrSessionOpenFailed),
		errors.Is(err, wallet.ErrSessionClosed):
		e.Code = CodeDisconnected
	case errors.Is(err, wallet.ErrChainMismatch):
		e.Code = CodeChainDisconnected
	case errors.Is(err, wallet.ErrUnsupportedChain):
		e.Code = CodeUnrecognizedChain
	case errors.Is(err, wallet.ErrInvalidParams):
		e.Code = CodeInvalidParams
	case errors.Is(err, wallet.ErrDevicePending):
		e.Code = CodeResourceUnavailable
	case hasRPCErr && rpcErr.Code != 0:
		// node errors pass through, including reverts found during gas estimation
		e.Code = rpcErr.Code
		e.Data = rpcErr.Data
	case hasRPCErr:
		e.Data = map[string]any{"httpStatus": rpcErr.StatusCode}
	}

	return e
}
