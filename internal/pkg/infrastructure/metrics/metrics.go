package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsReceived  prometheus.Counter
	readingsStored    prometheus.Counter
	storeErrors       prometheus.Counter
	forwardErrors     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensordata_readings_received_total",
			Help: "Total sensor readings posted to the data endpoint.",
		}),
		readingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensordata_readings_stored_total",
			Help: "Total sensor readings saved to the database.",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensordata_store_errors_total",
			Help: "Total failures to save sensor readings.",
		}),
		forwardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensordata_forward_errors_total",
			Help: "Total failures to forward sensor readings by target.",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsReceived,
		m.readingsStored,
		m.storeErrors,
		m.forwardErrors,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReadingReceived() {
	if m == nil {
		return
	}
	m.readingsReceived.Inc()
}

func (m *Metrics) ReadingStored(success bool) {
	if m == nil {
		return
	}
	if success {
		m.readingsStored.Inc()
	} else {
		m.storeErrors.Inc()
	}
}

func (m *Metrics) ForwardFailed(target string) {
	if m == nil {
		return
	}
	m.forwardErrors.WithLabelValues(target).Inc()
}
