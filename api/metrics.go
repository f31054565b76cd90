package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pardna_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pardna_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ledgersGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pardna_ledgers_generated_total",
		Help: "Ledgers generated, by reason (create or regenerate)",
	}, []string{"reason"})

	overduePayments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pardna_overdue_payments",
		Help: "Unsettled payments past their due date at the last monitor check",
	})
)

// countLedgerGenerated is installed as the Manager's ledger hook, so plans
// created outside HTTP handlers are counted too.
func countLedgerGenerated(reason string) {
	ledgersGenerated.WithLabelValues(reason).Inc()
}

// instrument records request count and latency labelled by chi route
// pattern, so /api/plans/{id} is one series rather than one per plan.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
