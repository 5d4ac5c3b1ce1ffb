package device

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/ledger"
	"github/chapool/ledger-provider/internal/wallet"
)

// Transport is the signing surface exposed by a hardware device.
// Implementations are not safe for concurrent use; the Manager serializes access.
type Transport interface {
	GetAddress(path accounts.DerivationPath) (common.Address, error)
	SignTransaction(path accounts.DerivationPath, rawTxHex string, resolution wallet.Resolution) (wallet.Signature, error)
	SignPersonalMessage(path accounts.DerivationPath, message []byte) (wallet.Signature, error)
	Close() error
}

// Connector acquires a Transport.
type Connector interface {
	// Supported reports whether the platform offers the device access API at all.
	Supported() bool
	Connect() (Transport, error)
}

// LedgerConnector connects to a Ledger running the Ethereum app.
type LedgerConnector struct {
	admin ledger.Admin
	index int
}

// NewLedgerConnector returns a connector for the device at index as enumerated by admin.
func NewLedgerConnector(admin ledger.Admin, index int) *LedgerConnector {
	return &LedgerConnector{admin: admin, index: index}
}

func (c *LedgerConnector) Supported() bool {
	return c.admin.Supported()
}

func (c *LedgerConnector) Connect() (Transport, error) {
	dev, err := c.admin.Connect(c.index)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to ledger")
	}

	app := ledger.NewEthApp(dev)
	version, err := app.Version()
	if err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "failed to query Ethereum app, is it open on the device?")
	}

	log.Info().
		Int("device_index", c.index).
		Str("app_version", formatVersion(version)).
		Msg("Connected to Ledger Ethereum app")

	return app, nil
}

func formatVersion(v [3]byte) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}
