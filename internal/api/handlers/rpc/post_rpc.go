package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

func PostRPCRoute(s *api.Server) *echo.Route {
	return s.Router.Root.POST("/", postRPCHandler(s))
}

// postRPCHandler serves the provider over JSON-RPC 2.0. Batches are served in
// order, one request at a time. Failures are reported inside the envelope with
// HTTP status 200, like an Ethereum node does.
func postRPCHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := util.LogFromEchoContext(c)

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to read request body")
			return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
		}

		body = bytes.TrimSpace(body)
		if len(body) == 0 || body[0] != '[' {
			return c.JSON(http.StatusOK, serve(c, s, body))
		}

		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return c.JSON(http.StatusOK, errorResponse(nil, CodeParseError, "parse error"))
		}
		if len(batch) == 0 {
			return c.JSON(http.StatusOK, errorResponse(nil, CodeInvalidRequest, "empty batch"))
		}

		responses := make([]response, 0, len(batch))
		for _, raw := range batch {
			responses = append(responses, serve(c, s, raw))
		}

		return c.JSON(http.StatusOK, responses)
	}
}

func serve(c echo.Context, s *api.Server, raw json.RawMessage) response {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error")
	}
	if req.JSONRPC != version || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "invalid request")
	}

	id := req.ID
	if len(id) == 0 {
		id = nullID
	}

	result, err := s.Provider.Request(c.Request().Context(), provider.Request{
		Method: req.Method,
		Params: req.Params,
	})
	if err != nil {
		return response{JSONRPC: version, ID: id, Error: provider.ToError(err)}
	}
	if len(result) == 0 {
		result = nullID
	}

	return response{JSONRPC: version, ID: id, Result: result}
}
