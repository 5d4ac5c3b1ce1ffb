package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/message"
	"github/chapool/ledger-provider/internal/wallet/network"
	"github/chapool/ledger-provider/internal/wallet/signer"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

// Request is a provider call.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Sessions opens the device session on demand.
type Sessions interface {
	Open(ctx context.Context) (*device.Session, error)
}

// Forwarder passes read calls through to the network.
type Forwarder interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

var (
	_ Sessions  = (*device.Manager)(nil)
	_ Forwarder = (*network.Client)(nil)
)

// Observer is notified after every request.
type Observer func(method string, kind Kind, elapsed time.Duration, err *Error)

// Provider is a wallet provider backed by the hardware device. It is bound to
// a single chain and never emits account or chain change events.
type Provider struct {
	sessions  Sessions
	forwarder Forwarder
	builder   txbuilder.Service
	signer    signer.Service
	messages  message.Service
	observer  Observer
}

// New creates a provider.
func New(
	sessions Sessions,
	forwarder Forwarder,
	builder txbuilder.Service,
	signerService signer.Service,
	messages message.Service,
) *Provider {
	return &Provider{
		sessions:  sessions,
		forwarder: forwarder,
		builder:   builder,
		signer:    signerService,
		messages:  messages,
	}
}

// SetObserver registers fn to be called after each request.
func (p *Provider) SetObserver(fn Observer) {
	p.observer = fn
}

// ChainID returns the chain the provider is bound to.
func (p *Provider) ChainID() *big.Int {
	return p.builder.ChainID()
}

// On is a no-op: the account and chain never change.
func (p *Provider) On(_ string, _ func(any)) {}

// RemoveListener is a no-op.
func (p *Provider) RemoveListener(_ string, _ func(any)) {}

// Request serves a single provider call. Failures are always returned as *Error.
func (p *Provider) Request(ctx context.Context, req Request) (json.RawMessage, error) {
	kind := Classify(req.Method)
	log := util.LogFromContext(ctx).With().Str("method", req.Method).Str("kind", kind.String()).Logger()

	started := time.Now()
	result, err := p.dispatch(ctx, kind, req)
	elapsed := time.Since(started)

	var providerErr *Error
	if err != nil {
		providerErr = ToError(err)
		log.Debug().Err(err).Int("code", providerErr.Code).Dur("elapsed", elapsed).Msg("Provider request rejected")
	} else {
		log.Debug().Dur("elapsed", elapsed).Msg("Provider request served")
	}

	if p.observer != nil {
		p.observer(req.Method, kind, elapsed, providerErr)
	}

	if providerErr != nil {
		return nil, providerErr
	}
	return result, nil
}

func (p *Provider) dispatch(ctx context.Context, kind Kind, req Request) (json.RawMessage, error) {
	switch kind {
	case KindForwardedRead:
		return p.forwarder.Call(ctx, req.Method, req.Params)
	case KindAccounts:
		return p.accounts(ctx)
	case KindChainID:
		return json.Marshal(hexutil.EncodeBig(p.ChainID()))
	case KindSwitchChain:
		return p.switchChain(req.Params)
	case KindSendTransaction:
		return p.sendTransaction(ctx, req.Params)
	case KindPersonalSign:
		return p.personalSign(ctx, req.Params)
	case KindUnsupported:
	}
	return nil, errors.Wrapf(wallet.ErrUnsupportedMethod, "%q", req.Method)
}

func (p *Provider) accounts(ctx context.Context) (json.RawMessage, error) {
	session, err := p.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]common.Address{session.Address()})
}

type switchChainParams struct {
	ChainID *hexutil.Big `json:"chainId"`
}

func (p *Provider) switchChain(params json.RawMessage) (json.RawMessage, error) {
	var args []switchChainParams
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 || args[0].ChainID == nil {
		return nil, errors.Wrap(wallet.ErrInvalidParams, "expected [{chainId}]")
	}

	if requested := args[0].ChainID.ToInt(); requested.Cmp(p.ChainID()) != 0 {
		return nil, errors.Wrapf(wallet.ErrUnsupportedChain, "chain %s requested, bound to %s",
			hexutil.EncodeBig(requested), hexutil.EncodeBig(p.ChainID()))
	}
	return json.RawMessage("null"), nil
}

func (p *Provider) sendTransaction(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	args, err := txbuilder.DecodeSendTxParams(params)
	if err != nil {
		return nil, err
	}

	session, err := p.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := p.builder.Build(ctx, args, session.Address())
	if err != nil {
		return nil, err
	}

	res, err := p.signer.SignAndSend(ctx, session, tx)
	if err != nil {
		// only a request that never reached the node gives its nonce back
		if errors.Is(err, wallet.ErrBroadcastFailed) {
			util.LogFromContext(ctx).Warn().Err(err).
				Uint64("nonce", tx.Nonce).
				Msg("Broadcast outcome unknown, nonce stays reserved")
		} else {
			p.builder.Release(tx)
		}
		return nil, err
	}

	return json.Marshal(res.TxHash)
}

func (p *Provider) personalSign(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
		return nil, errors.Wrap(wallet.ErrInvalidParams, "expected [message, address]")
	}

	var msg string
	if err := json.Unmarshal(args[0], &msg); err != nil {
		return nil, errors.Wrap(wallet.ErrInvalidParams, "message must be a string")
	}

	var expected *common.Address
	if len(args) > 1 && string(args[1]) != "null" {
		expected = new(common.Address)
		if err := json.Unmarshal(args[1], expected); err != nil {
			return nil, errors.Wrapf(wallet.ErrInvalidParams, "invalid address: %v", err)
		}
	}

	session, err := p.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}

	sig, err := p.messages.SignPersonal(ctx, session, msg, expected)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sig)
}
