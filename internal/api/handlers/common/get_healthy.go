package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/util"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

// Health check
// Probes the node for its chain id and reports the device session state.
// The device itself is never touched: opening it may require user interaction.
func getHealthyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			return c.String(StatusNotReady, "Not ready.")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), s.Config.Management.ProbeTimeout)
		defer cancel()

		log := util.LogFromContext(ctx)
		var str strings.Builder
		healthy := true

		chainID, err := s.Network.ChainID(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Health probe failed: node unreachable")
			healthy = false
			str.WriteString("Node: unreachable.\n")
		case chainID.Int64() != s.Config.Chain.ID:
			log.Warn().Int64("node_chain_id", chainID.Int64()).Int64("chain_id", s.Config.Chain.ID).Msg("Health probe failed: chain id mismatch")
			healthy = false
			fmt.Fprintf(&str, "Node: chain id %d, expected %d.\n", chainID.Int64(), s.Config.Chain.ID)
		default:
			fmt.Fprintf(&str, "Node: chain id %d.\n", chainID.Int64())
		}

		if session := s.Devices.Current(); session != nil {
			fmt.Fprintf(&str, "Device: open (%s).\n", session.Address().Hex())
		} else {
			str.WriteString("Device: not opened.\n")
		}

		if !healthy {
			return c.String(StatusNotReady, str.String())
		}

		return c.String(http.StatusOK, str.String())
	}
}
