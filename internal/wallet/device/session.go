package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/wallet"
	"golang.org/x/sync/semaphore"
)

// Device operation names reported to the Observer.
const (
	OpOpen                = "open"
	OpSignTransaction     = "sign_transaction"
	OpSignPersonalMessage = "sign_personal_message"
	OpClose               = "close"
)

// Observer is notified after every device operation completes.
type Observer func(op string, elapsed time.Duration, err error)

// Manager owns the single device session of the process.
//
// Every operation touching the device (open, address derivation, signing) runs
// under one lock whose waiters are served in arrival order, so back to back
// requests reach the device in issue order and never interleave. A device
// operation cannot be cancelled once started: a caller whose context ends while
// waiting for the result gets wallet.ErrDevicePending and the lock stays held
// until the device answers.
type Manager struct {
	connector Connector
	path      accounts.DerivationPath
	lock      *semaphore.Weighted
	observer  Observer

	mu      sync.Mutex
	session *Session
}

// Session is an open device together with the account derived at the configured path.
// The address never changes for the lifetime of a session.
type Session struct {
	manager   *Manager
	transport Transport
	address   common.Address
	path      accounts.DerivationPath
	closed    atomic.Bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithObserver registers fn to be called after each device operation.
func WithObserver(fn Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = fn
	}
}

// NewManager creates a manager deriving the session account at path.
// No device access happens until the first call to Open.
func NewManager(connector Connector, path accounts.DerivationPath, opts ...ManagerOption) *Manager {
	m := &Manager{
		connector: connector,
		path:      path,
		lock:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the derivation path used for the session account.
func (m *Manager) Path() accounts.DerivationPath {
	return m.path
}

// Current returns the open session or nil without touching the device.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// Open returns the cached session, opening the device on first use.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	if session := m.Current(); session != nil {
		return session, nil
	}

	if !m.connector.Supported() {
		return nil, wallet.ErrTransportUnavailable
	}

	return exclusive(ctx, m, OpOpen, func() (*Session, error) {
		// another caller may have opened the device while we waited
		if current := m.Current(); current != nil {
			return current, nil
		}

		transport, err := m.connector.Connect()
		if err != nil {
			return nil, openFailed(err)
		}

		address, err := transport.GetAddress(m.path)
		if err != nil {
			_ = transport.Close()
			return nil, openFailed(errors.Wrap(err, "failed to derive account"))
		}

		session := &Session{
			manager:   m,
			transport: transport,
			address:   address,
			path:      m.path,
		}

		m.mu.Lock()
		m.session = session
		m.mu.Unlock()

		log.Info().
			Str("address", address.Hex()).
			Str("path", m.path.String()).
			Msg("Device session opened")

		return session, nil
	})
}

// Close waits for any in-flight device operation, then releases the transport.
// The next call to Open reconnects. Closing a manager without a session is a no-op.
func (m *Manager) Close() error {
	if err := m.lock.Acquire(context.Background(), 1); err != nil {
		return errors.Wrap(err, "failed to acquire device lock")
	}
	defer m.lock.Release(1)

	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session == nil {
		return nil
	}

	session.closed.Store(true)
	started := time.Now()
	err := session.transport.Close()
	m.observe(OpClose, time.Since(started), err)
	if err != nil {
		return errors.Wrap(err, "failed to close transport")
	}

	log.Info().Str("address", session.address.Hex()).Msg("Device session closed")
	return nil
}

type result[T any] struct {
	value T
	err   error
}

// exclusive runs fn while holding the device lock and hands its result back to
// the caller unless the caller stopped waiting.
func exclusive[T any](ctx context.Context, m *Manager, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, errors.Wrap(err, "device request abandoned before start")
	}
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return zero, errors.Wrap(err, "device request abandoned while queued")
	}

	done := make(chan result[T], 1)
	go func() {
		defer m.lock.Release(1)

		started := time.Now()
		value, err := fn()
		m.observe(op, time.Since(started), err)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.value, res.err
		default:
		}
		log.Warn().Str("op", op).Msg("Caller stopped waiting for device operation still in progress")
		return zero, errors.Wrapf(wallet.ErrDevicePending, "%s", op)
	}
}

func (m *Manager) observe(op string, elapsed time.Duration, err error) {
	if m.observer != nil {
		m.observer(op, elapsed, err)
	}
}

func openFailed(err error) error {
	if errors.Is(err, wallet.ErrSessionOpenFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", wallet.ErrSessionOpenFailed, err)
}

// Address returns the session account.
func (s *Session) Address() common.Address {
	return s.address
}

// Path returns the derivation path of the session account.
func (s *Session) Path() accounts.DerivationPath {
	return s.path
}

// SignTransaction asks the device to sign a serialized unsigned transaction given as bare hex.
func (s *Session) SignTransaction(ctx context.Context, rawTxHex string, resolution wallet.Resolution) (wallet.Signature, error) {
	return exclusive(ctx, s.manager, OpSignTransaction, func() (wallet.Signature, error) {
		if s.closed.Load() {
			return wallet.Signature{}, wallet.ErrSessionClosed
		}
		return s.transport.SignTransaction(s.path, rawTxHex, resolution.Normalized())
	})
}

// SignPersonalMessage asks the device to sign message with the personal message prefix.
func (s *Session) SignPersonalMessage(ctx context.Context, message []byte) (wallet.Signature, error) {
	return exclusive(ctx, s.manager, OpSignPersonalMessage, func() (wallet.Signature, error) {
		if s.closed.Load() {
			return wallet.Signature{}, wallet.ErrSessionClosed
		}
		return s.transport.SignPersonalMessage(s.path, message)
	})
}
