package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github/chapool/ledger-provider/internal/wallet/provider"
)

const namespace = "bridge"

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Service holds the prometheus collectors of the bridge on a private registry.
type Service struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	deviceDuration  *prometheus.HistogramVec
	devicePending   prometheus.Gauge
}

// New registers all collectors, including the Go runtime and process collectors.
func New() (*Service, error) {
	s := &Service{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Provider requests by method and outcome (ok or EIP-1193 error code).",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Provider request latency by dispatch kind.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"kind"}),
		deviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "operation_duration_seconds",
			Help:      "Device operation latency including user confirmation.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"op", "outcome"}),
		devicePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "abandoned_operations",
			Help:      "Device operations whose caller stopped waiting.",
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.requests,
		s.requestDuration,
		s.deviceDuration,
		s.devicePending,
	} {
		if err := s.Registry.Register(c); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ObserveRequest is a provider.Observer.
func (s *Service) ObserveRequest(method string, kind provider.Kind, elapsed time.Duration, err *provider.Error) {
	// keep label cardinality bounded
	if kind == provider.KindUnsupported {
		method = kind.String()
	}

	outcome := outcomeOK
	if err != nil {
		outcome = strconv.Itoa(err.Code)
		if err.Code == provider.CodeResourceUnavailable {
			s.devicePending.Inc()
		}
	}

	s.requests.WithLabelValues(method, outcome).Inc()
	s.requestDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// ObserveDevice is a device.Observer.
func (s *Service) ObserveDevice(op string, elapsed time.Duration, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	s.deviceDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}
