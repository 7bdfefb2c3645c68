// Package metrics exposes Prometheus metrics for the HTTP surface and the
// upload lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/whenitworks/backend/internal/upload"
)

const namespace = "whenitworks"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	selectionsTotal prometheus.Counter
	outcomesTotal   *prometheus.CounterVec
	readDuration    prometheus.Histogram
	fileSize        prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)
	selectionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "selections_total",
			Help:      "Total file selections received.",
		},
	)
	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "outcomes_total",
			Help:      "Terminal upload outcomes by result.",
		},
		[]string{"result"},
	)
	readDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "read_duration_seconds",
			Help:      "Time spent reading accepted files.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
	fileSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "file_size_bytes",
			Help:      "Size of selected files.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		selectionsTotal,
		outcomesTotal,
		readDuration,
		fileSize,
	)

	return &Metrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		selectionsTotal: selectionsTotal,
		outcomesTotal:   outcomesTotal,
		readDuration:    readDuration,
		fileSize:        fileSize,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackSessions exposes the live page session count, sampled on scrape.
func (m *Metrics) TrackSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live page sessions.",
		},
		func() float64 { return float64(count()) },
	))
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.requestInFlight.Inc()
			defer m.requestInFlight.Dec()

			if err := next(c); err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			m.requestTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// ObserveTransition implements upload.Observer.
func (m *Metrics) ObserveTransition(prev, next upload.State) {
	switch next.Phase {
	case upload.PhaseValidating:
		m.selectionsTotal.Inc()
		if next.File != nil {
			m.fileSize.Observe(float64(next.File.Size))
		}
	case upload.PhaseDisplayed:
		m.outcomesTotal.WithLabelValues(string(upload.PhaseDisplayed)).Inc()
		m.observeRead(next)
	case upload.PhaseFailed:
		m.outcomesTotal.WithLabelValues(string(next.ErrorKind)).Inc()
		if prev.Phase == upload.PhaseReading {
			m.observeRead(next)
		}
	}
}

func (m *Metrics) observeRead(s upload.State) {
	if s.ReadStartedAt.IsZero() || s.FinishedAt.IsZero() {
		return
	}
	m.readDuration.Observe(s.FinishedAt.Sub(s.ReadStartedAt).Seconds())
}
