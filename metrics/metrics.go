// Package metrics exposes Prometheus counters for the ticketing engine and
// its HTTP API.
//
// Recorder is a ticketing.Publisher: wire it into the engine's publisher
// chain and every committed event is counted. Its Middleware times API
// requests by chi route pattern.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/ticket-engine/ticketing"
)

// Recorder owns a private registry so tests can build as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	ticketsSold     prometheus.Counter
	revenueSettled  prometheus.Counter
	revenueReversed prometheus.Counter
	cashDifference  *prometheus.CounterVec
	apiErrors       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ ticketing.Publisher = (*Recorder)(nil)

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketing",
			Name:      "events_total",
			Help:      "Committed ticketing events by type.",
		}, []string{"type"}),
		ticketsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ticketing",
			Name:      "tickets_sold_total",
			Help:      "Tickets sold across all settlements, including ones later reversed.",
		}),
		revenueSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ticketing",
			Name:      "revenue_settled_total",
			Help:      "Revenue posted to the accounting ledger by settlements.",
		}),
		revenueReversed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ticketing",
			Name:      "revenue_reversed_total",
			Help:      "Revenue retracted from the accounting ledger by reversals.",
		}),
		cashDifference: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketing",
			Name:      "staff_cash_difference_total",
			Help:      "Absolute staff cash differences recorded, by direction.",
		}, []string{"direction"}),
		apiErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketing",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "API error responses by HTTP status.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ticketing",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.events,
		r.ticketsSold,
		r.revenueSettled,
		r.revenueReversed,
		r.cashDifference,
		r.apiErrors,
		r.requestDuration,
	)
	return r
}

// Publish counts a committed event. It never fails.
func (r *Recorder) Publish(_ context.Context, ev ticketing.Event) error {
	r.events.WithLabelValues(string(ev.Type)).Inc()

	amount := ev.Amount.InexactFloat64()
	switch ev.Type {
	case ticketing.EventDistributionSettled:
		r.ticketsSold.Add(float64(ev.Tickets))
		r.revenueSettled.Add(amount)
	case ticketing.EventDistributionUnsettled:
		r.revenueReversed.Add(amount)
	case ticketing.EventStaffSettlementCreated:
		if ev.Amount.IsNegative() {
			r.cashDifference.WithLabelValues("short").Add(-amount)
		} else {
			r.cashDifference.WithLabelValues("excess").Add(amount)
		}
	}
	return nil
}

// ObserveError counts an API error response.
func (r *Recorder) ObserveError(status int) {
	r.apiErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Middleware records request latency by chi route pattern. It must be
// mounted with Router.Use so the pattern is known when the handler returns.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.requestDuration.
			WithLabelValues(req.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
