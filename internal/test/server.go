package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/api/router"
	"github/chapool/ledger-provider/internal/config"
)

// Backends are the test doubles behind a test server.
type Backends struct {
	Node   *Node
	Device *RecordingDevice
}

// NewTestConfig returns the default configuration bound to chain id 5 at node.
func NewTestConfig(t *testing.T, node *Node) config.Server {
	t.Helper()

	cfg, err := config.FromViper(config.NewViper())
	require.NoError(t, err)

	cfg.Chain.ID = 5
	cfg.Chain.RPCURL = node.URL()
	cfg.Chain.RPCTimeout = time.Second
	cfg.Device.Backend = config.BackendEmulator
	cfg.Device.Mnemonic = Mnemonic
	cfg.Logger.PrettyPrintConsole = false
	cfg.Management.ProbeTimeout = time.Second

	return cfg
}

// WithTestServer runs closure against a fully wired server backed by a devnet
// Node and a RecordingDevice. The server is not listening; use PerformRequest.
func WithTestServer(t *testing.T, closure func(s *api.Server, b *Backends)) {
	t.Helper()

	node := NewDevnet(t)
	WithTestServerConfigurable(t, NewTestConfig(t, node), node, closure)
}

// WithTestServerConfigurable is WithTestServer with a custom configuration.
func WithTestServerConfigurable(t *testing.T, cfg config.Server, node *Node, closure func(s *api.Server, b *Backends)) {
	t.Helper()

	dev := NewRecordingDevice(t)
	s, err := api.InitNewServerWithConnector(cfg, &Connector{Device: dev})
	require.NoError(t, err, "failed to init server")

	router.Init(s)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.Empty(t, s.Shutdown(ctx), "failed to shutdown server")
	})

	closure(s, &Backends{Node: node, Device: dev})
}

// PerformRequest serves a request against s. A body that is neither []byte nor
// string is JSON encoded.
func PerformRequest(t *testing.T, s *api.Server, method string, path string, body any, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get(echo.HeaderContentType) == "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)

	return res
}
