//go:build wireinject

package api

import (
	"github.com/google/wire"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/metrics"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/message"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing a server
var serviceSet = wire.NewSet(
	newServerWithComponents,
	NewNetworkClient,
	NewDeviceManager,
	NewTxBuilder,
	NewSigner,
	NewProvider,
	message.NewService,
	metrics.New,
)

// InitNewServer returns a new Server instance.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet, NewConnector)
	return new(Server), nil
}

// InitNewServerWithConnector returns a new Server instance talking to the given device connector.
// All the other components are initialized via go wire according to the configuration.
func InitNewServerWithConnector(
	_ config.Server,
	_ device.Connector,
) (*Server, error) {
	wire.Build(serviceSet)
	return new(Server), nil
}
