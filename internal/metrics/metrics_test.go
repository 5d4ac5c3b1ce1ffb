package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/metrics"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

func TestObserveRequest(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)

	m.ObserveRequest("eth_chainId", provider.KindChainID, time.Millisecond, nil)
	m.ObserveRequest("eth_sendTransaction", provider.KindSendTransaction, time.Second, &provider.Error{Code: provider.CodeUserRejected})
	m.ObserveRequest("eth_whatever_1", provider.KindUnsupported, time.Millisecond, &provider.Error{Code: provider.CodeUnsupportedMethod})
	m.ObserveRequest("eth_whatever_2", provider.KindUnsupported, time.Millisecond, &provider.Error{Code: provider.CodeUnsupportedMethod})
	m.ObserveDevice(device.OpSignTransaction, time.Second, errors.New("rejected"))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "bridge_provider_requests_total" {
			assert.Len(t, family.GetMetric(), 3, "unknown methods share one series")
		}
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bridge_provider_requests_total{method="eth_sendTransaction",outcome="4001"} 1`)
	assert.Contains(t, rec.Body.String(), `bridge_provider_requests_total{method="unsupported",outcome="4200"} 2`)
	assert.Contains(t, rec.Body.String(), `bridge_device_operation_duration_seconds_count{op="sign_transaction",outcome="error"} 1`)
}
