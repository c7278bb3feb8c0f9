package observ

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdpcore_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cdpcore_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	recipientsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdpcore_campaign_recipients_total",
		Help: "Campaign recipients processed, by delivery result",
	}, []string{"result"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cdpcore_campaign_batch_duration_seconds",
		Help:    "Wall time to fan out and collect one campaign batch",
		Buckets: prometheus.DefBuckets,
	})

	campaignRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdpcore_campaign_runs_total",
		Help: "Campaign pipeline runs, by terminal status",
	}, []string{"status"})

	sessionsBound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cdpcore_session_records_bound_total",
		Help: "Session event records attached to a profile by the binder",
	})

	countRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdpcore_count_refreshes_total",
		Help: "Cached profile_count recomputations, by entity",
	}, []string{"entity"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveBatch records one finished campaign batch.
func ObserveBatch(sent, failed int, duration time.Duration) {
	recipientsProcessed.WithLabelValues("sent").Add(float64(sent))
	recipientsProcessed.WithLabelValues("failed").Add(float64(failed))
	batchDuration.Observe(duration.Seconds())
}

// ObserveCampaignRun counts a pipeline reaching a terminal or stopping status.
func ObserveCampaignRun(status string) {
	campaignRuns.WithLabelValues(status).Inc()
}

// ObserveBind counts session records bound in one binder pass.
func ObserveBind(n int64) {
	if n > 0 {
		sessionsBound.Add(float64(n))
	}
}

// ObserveCountRefresh counts a tag or list profile_count recomputation.
func ObserveCountRefresh(entity string) {
	countRefreshes.WithLabelValues(entity).Inc()
}
