// Package metrics exposes Prometheus collectors for remote calls, persistence
// outcomes and the local control API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsync_remote_requests_total",
			Help: "Requests sent to the workout service",
		},
		[]string{"op", "outcome"},
	)

	remoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workoutsync_remote_request_duration_seconds",
			Help:    "Workout service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsync_rollbacks_total",
			Help: "Optimistic mutations rolled back after a failed write",
		},
		[]string{"op"},
	)

	debouncedSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsync_debounced_saves_total",
			Help: "Coalesced field-edit saves",
		},
		[]string{"outcome"},
	)

	suggestionFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsync_suggestion_fetches_total",
			Help: "Suggestion fetches by outcome",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsync_http_requests_total",
			Help: "Control API requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workoutsync_http_request_duration_seconds",
			Help:    "Control API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			remoteRequestsTotal,
			remoteRequestDuration,
			rollbacksTotal,
			debouncedSavesTotal,
			suggestionFetchesTotal,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRemote records one workout service call.
func ObserveRemote(op string, start time.Time, err error) {
	remoteRequestsTotal.WithLabelValues(op, outcome(err)).Inc()
	remoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Rollback records a reverted optimistic mutation.
func Rollback(op string) {
	rollbacksTotal.WithLabelValues(op).Inc()
}

// DebouncedSave records the outcome of a coalesced field save.
func DebouncedSave(err error) {
	debouncedSavesTotal.WithLabelValues(outcome(err)).Inc()
}

// SuggestionFetch records the outcome of a suggestion fetch.
func SuggestionFetch(err error) {
	suggestionFetchesTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveHTTP records one control API request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
