package common

import (
	"github.com/labstack/echo/v4"
	"github/chapool/ledger-provider/internal/api"
)

func GetMetricsRoute(s *api.Server) *echo.Route {
	return s.Router.Root.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
}
