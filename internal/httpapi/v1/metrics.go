package v1

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinoosan/cashbook/internal/finance"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cashbook",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cashbook",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
	entryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cashbook",
			Name:      "entry_operations_total",
			Help:      "Entry add/update/delete operations by outcome",
		},
		[]string{"kind", "op", "result"},
	)
	cascadeRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cashbook",
			Name:      "cascade_records_total",
			Help:      "Daily records rewritten by category rename/delete cascades",
		},
		[]string{"op"},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}

func observeEntryOp(kind finance.Kind, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	entryOperations.WithLabelValues(string(kind), op, result).Inc()
}
