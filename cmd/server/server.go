package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/api/router"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/util/command"
)

const (
	openDeviceFlag = "open-device"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the provider over JSON-RPC",
		Long: `Serves the provider over JSON-RPC 2.0 on the configured listen address.

Point a dapp or a tool expecting an Ethereum node at it: reads are forwarded
to the configured node, transactions and messages are signed on the device.`,
		RunE: runServer,
	}

	cmd.Flags().Bool(openDeviceFlag, false, "open the device session at startup instead of on first use")

	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize server")
		return err
	}

	router.Init(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkNetwork(ctx, s)

	if openDevice, _ := cmd.Flags().GetBool(openDeviceFlag); openDevice {
		if _, err := s.Devices.Open(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to open device session")
			return err
		}
	}

	go func() {
		log.Info().
			Str("address", cfg.Echo.ListenAddress).
			Int64("chain_id", cfg.Chain.ID).
			Str("backend", cfg.Device.Backend).
			Msg("Starting server")

		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to start server")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Echo.ShutdownTimeout)
	defer cancel()

	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
		return errs[0]
	}

	log.Info().Msg("Server shut down")
	return nil
}

// checkNetwork warns when the node is unreachable or serves another chain.
// Neither is fatal: the node may come up later.
func checkNetwork(ctx context.Context, s *api.Server) {
	ctx, cancel := context.WithTimeout(ctx, s.Config.Management.ProbeTimeout)
	defer cancel()

	chainID, err := s.Network.ChainID(ctx)
	if err != nil {
		log.Warn().Err(err).Str("url", s.Network.URL()).Msg("Node is not reachable")
		return
	}
	if chainID.Int64() != s.Config.Chain.ID {
		log.Warn().
			Int64("node_chain_id", chainID.Int64()).
			Int64("chain_id", s.Config.Chain.ID).
			Msg("Node serves a different chain than configured")
	}
}
