package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/metrics"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/network"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
}

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewServer* call.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	Config   config.Server
	Network  *network.Client
	Devices  *device.Manager
	Provider *provider.Provider
	Metrics  *metrics.Service
}

// newServerWithComponents is used by wire to initialize the server components.
// Components not listed here won't be handled by wire and should be initialized separately.
// Components which shouldn't be handled must be labeled `wire:"-"` in Server struct.
func newServerWithComponents(
	cfg config.Server,
	client *network.Client,
	devices *device.Manager,
	p *provider.Provider,
	m *metrics.Service,
) *Server {
	return &Server{
		Config:   cfg,
		Network:  client,
		Devices:  devices,
		Provider: p,
		Metrics:  m,
	}
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

// Ready reports whether every component has been initialized.
func (s *Server) Ready() bool {
	missing := ""
	switch {
	case s.Echo == nil:
		missing = "echo"
	case s.Router == nil:
		missing = "router"
	case s.Network == nil:
		missing = "network"
	case s.Devices == nil:
		missing = "devices"
	case s.Provider == nil:
		missing = "provider"
	case s.Metrics == nil:
		missing = "metrics"
	}

	if missing != "" {
		log.Debug().Str("component", missing).Msg("Server is not fully initialized")
		return false
	}

	return true
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Echo.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests, then waits for the in-flight device
// operation before releasing the device and the network client.
func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.Devices != nil {
		log.Debug().Msg("Closing device session")

		if err := s.Devices.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close device session")
			errs = append(errs, err)
		}
	}

	if s.Network != nil {
		log.Debug().Msg("Closing network client")
		s.Network.Close()
	}

	return errs
}
