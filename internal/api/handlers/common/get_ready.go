package common

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/util"
)

// StatusNotReady is returned by the readiness and health probes on failure.
const StatusNotReady = 521

func GetReadyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/ready", getReadyHandler(s))
}

// Readiness check
// This endpoint returns 200 when our Service is ready to serve traffic (i.e. respond to queries).
// Does read-only probes apart from the general server ready state.
// Note that /-/ready is typically public (and not shielded by a mgmt-secret), we thus prevent information leakage here and only return `"Ready."`.
func getReadyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			util.LogFromEchoContext(c).Warn().Msg("Readiness probe failed: server is not ready")
			return c.String(StatusNotReady, "Not ready.")
		}

		return c.String(http.StatusOK, "Ready.")
	}
}
