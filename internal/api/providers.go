package api

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/ledger"
	"github/chapool/ledger-provider/internal/metrics"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/keystore"
	"github/chapool/ledger-provider/internal/wallet/message"
	"github/chapool/ledger-provider/internal/wallet/network"
	"github/chapool/ledger-provider/internal/wallet/provider"
	"github/chapool/ledger-provider/internal/wallet/signer"
	"github/chapool/ledger-provider/internal/wallet/txbuilder"
)

// PROVIDERS - https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

// NewNetworkClient dials the configured node. HTTP endpoints are connected lazily.
func NewNetworkClient(cfg config.Server) (*network.Client, error) {
	return network.NewClient(context.Background(), cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
}

// NewConnector returns the device connector for the configured backend.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewConnector(cfg config.Server) (device.Connector, error) {
	switch cfg.Device.Backend {
	case config.BackendLedger:
		return device.NewLedgerConnector(ledger.NewAdmin(), cfg.Device.Index), nil
	case config.BackendEmulator:
		emulator, err := NewEmulator(cfg)
		if err != nil {
			return nil, err
		}
		return device.NewEmulatorConnector(emulator), nil
	default:
		return nil, errors.Errorf("unknown device backend %q", cfg.Device.Backend)
	}
}

// NewEmulator creates a software device from the configured mnemonic or, if none
// is set, from the encrypted keystore, prompting for its password when needed.
func NewEmulator(cfg config.Server) (*device.Emulator, error) {
	log.Warn().Msg("Using the emulator backend: keys are held in process memory")

	if cfg.Device.Mnemonic != "" {
		return device.NewEmulator(cfg.Device.Mnemonic, cfg.Device.Passphrase)
	}

	prompt := keystore.PromptPassword
	if cfg.Device.KeystorePassword != "" {
		prompt = keystore.StaticPassword(cfg.Device.KeystorePassword)
	}

	ks := keystore.NewService(cfg.Device.Keystore, keystore.DefaultScryptParams())
	return keystore.UnlockEmulator(context.Background(), ks, prompt, cfg.Device.Passphrase, cfg.Device.DerivationPath)
}

// NewDeviceManager creates the device session manager reporting to the metrics service.
func NewDeviceManager(cfg config.Server, connector device.Connector, m *metrics.Service) (*device.Manager, error) {
	path, err := device.ParsePath(cfg.Device.DerivationPath)
	if err != nil {
		return nil, err
	}

	return device.NewManager(connector, path, device.WithObserver(m.ObserveDevice)), nil
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewTxBuilder(cfg config.Server, client *network.Client) txbuilder.Service {
	return txbuilder.NewService(client, big.NewInt(cfg.Chain.ID))
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewSigner(client *network.Client) signer.Service {
	return signer.NewService(client)
}

// NewProvider assembles the provider facade and registers the metrics observer.
func NewProvider(
	devices *device.Manager,
	client *network.Client,
	builder txbuilder.Service,
	signerService signer.Service,
	messages message.Service,
	m *metrics.Service,
) *provider.Provider {
	p := provider.New(devices, client, builder, signerService, messages)
	p.SetObserver(m.ObserveRequest)

	return p
}
