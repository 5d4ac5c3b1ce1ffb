package common_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/test"
)

func TestGetReadyReadiness(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := test.PerformRequest(t, s, "GET", "/-/ready", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		require.Equal(t, "Ready.", res.Body.String())
	})
}

func TestGetReadyReadinessBroken(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		// forcefully remove an initialized component to check if ready state works
		metrics := s.Metrics
		s.Metrics = nil
		defer func() { s.Metrics = metrics }()

		res := test.PerformRequest(t, s, "GET", "/-/ready", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		require.Equal(t, "Not ready.", res.Body.String())
	})
}

func TestGetHealthy(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "Node: chain id 5.")
		assert.Contains(t, res.Body.String(), "Device: not opened.")
		assert.Empty(t, b.Device.Calls(), "the probe never touches the device")

		_, err := s.Devices.Open(t.Context())
		require.NoError(t, err)

		res = test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		assert.Contains(t, res.Body.String(), "Device: open ("+test.TestAddress.Hex()+").")
	})
}

func TestGetHealthyChainMismatch(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		b.Node.Result("eth_chainId", "0x1")

		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "chain id 1, expected 5")
	})
}

func TestGetHealthyNodeDown(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, b *test.Backends) {
		b.Node.FailHTTP(http.StatusBadGateway)

		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "Node: unreachable.")
	})
}

func TestGetMetrics(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		rpc := test.PerformRequest(t, s, "POST", "/", `{"jsonrpc":"2.0","id":1,"method":"eth_chainId"}`, nil)
		require.Equal(t, http.StatusOK, rpc.Result().StatusCode)

		res := test.PerformRequest(t, s, "GET", "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), `bridge_provider_requests_total{method="eth_chainId",outcome="ok"} 1`)
	})
}

func TestGetVersion(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server, _ *test.Backends) {
		res := test.PerformRequest(t, s, "GET", "/-/version", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), " @ ")
	})
}
