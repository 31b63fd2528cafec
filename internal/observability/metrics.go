package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP server and the sales
// domain.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	salesRecorded   prometheus.Counter
	saleLines       prometheus.Counter
	salesReversed   prometheus.Counter
	dailyCloses     prometheus.Counter
	closedAmount    prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and domain collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	m := &Metrics{
		registry:        registry,
		requestsTotal:   requests,
		requestDuration: duration,
		salesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_sales_recorded_total",
			Help: "Committed sale submissions.",
		}),
		saleLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_sale_lines_recorded_total",
			Help: "Committed sale lines across all submissions.",
		}),
		salesReversed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_sales_reversed_total",
			Help: "Sales deleted with stock restored.",
		}),
		dailyCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_daily_closes_total",
			Help: "Completed daily closes.",
		}),
		closedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_daily_close_amount_total",
			Help: "Sum of totals recorded by daily closes.",
		}),
	}
	registry.MustRegister(requests, duration, m.salesRecorded, m.saleLines, m.salesReversed, m.dailyCloses, m.closedAmount)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for extra collectors such as job metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// SalesRecorded counts one committed submission of lines sale lines.
func (m *Metrics) SalesRecorded(lines int) {
	if m == nil || lines <= 0 {
		return
	}
	m.salesRecorded.Inc()
	m.saleLines.Add(float64(lines))
}

// SaleReversed counts a sale deletion.
func (m *Metrics) SaleReversed() {
	if m == nil {
		return
	}
	m.salesReversed.Inc()
}

// DailyCloseCompleted counts a close and its recorded total.
func (m *Metrics) DailyCloseCompleted(total float64) {
	if m == nil {
		return
	}
	m.dailyCloses.Inc()
	if total > 0 {
		m.closedAmount.Add(total)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
