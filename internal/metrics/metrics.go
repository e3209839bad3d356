// Package metrics holds the Prometheus instrumentation of kbmirror.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/kbmirror/pkg/errors"
)

// Outcome label values.
const (
	OutcomeAdded     = "added"
	OutcomeRefreshed = "refreshed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
	OutcomeSuccess   = "success"
	OutcomeSkipped   = "skipped"
	OutcomeDeleted   = "deleted"

	OutcomeRateLimited = "rate_limited"
)

var syncDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kbmirror_sync_documents_total",
	Help: "Documents processed by sync, labelled by outcome",
}, []string{"outcome"})

var syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "kbmirror_sync_duration_seconds",
	Help:    "Wall time of a full sync of one knowledge base.",
	Buckets: []float64{.5, 1, 5, 15, 60, 300, 900, 1800},
})

var remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kbmirror_remote_requests_total",
	Help: "Calls to the remote knowledge-base API, labelled by operation and outcome",
}, []string{"operation", "outcome"})

var remoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "kbmirror_remote_request_duration_seconds",
	Help:    "Latency of remote knowledge-base API calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"operation"})

var dedupDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kbmirror_dedup_deletions_total",
	Help: "Duplicate deletions attempted by clean, labelled by outcome",
}, []string{"outcome"})

var uploads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kbmirror_uploads_total",
	Help: "Upload attempts, labelled by outcome",
}, []string{"outcome"})

var cacheResets = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kbmirror_cache_resets_total",
	Help: "Times the mirror was discarded because its schema no longer matched",
})

// SyncDocument counts one document handled by sync.
func SyncDocument(outcome string) {
	syncDocuments.WithLabelValues(outcome).Inc()
}

// ObserveSync records the duration of a finished sync.
func ObserveSync(elapsed time.Duration) {
	syncDuration.Observe(elapsed.Seconds())
}

// RemoteRequest records one remote call.
func RemoteRequest(operation string, elapsed time.Duration, err error) {
	outcome := OutcomeSuccess
	switch {
	case errors.IsRateLimited(err):
		outcome = OutcomeRateLimited
	case err != nil:
		outcome = OutcomeFailed
	}
	remoteRequests.WithLabelValues(operation, outcome).Inc()
	remoteLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// DedupDeletion counts one deletion attempted by clean.
func DedupDeletion(outcome string) {
	dedupDeletions.WithLabelValues(outcome).Inc()
}

// Upload counts one upload attempt.
func Upload(outcome string) {
	uploads.WithLabelValues(outcome).Inc()
}

// CacheReset counts one mirror reset.
func CacheReset() {
	cacheResets.Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
