package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediavault",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	StreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "stream_requests_total",
		Help:      "Stream requests by content type and outcome.",
	}, []string{"type", "outcome"})

	StreamBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "stream_bytes_total",
		Help:      "Bytes written to stream responses by content type.",
	}, []string{"type"})

	StreamAbortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "stream_aborts_total",
		Help:      "Stream responses cut short after headers were sent.",
	})

	ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediavault",
		Name:      "active_streams",
		Help:      "Number of stream responses currently being written.",
	})

	PlaybackStartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "playback_starts_total",
		Help:      "Playback start log attempts by outcome (logged, deduplicated, failed).",
	}, []string{"outcome"})

	ProgressSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "progress_saves_total",
		Help:      "Watch progress saves by outcome.",
	}, []string{"outcome"})

	CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "catalog_cache_lookups_total",
		Help:      "Catalog cache lookups by result (hit, miss).",
	}, []string{"result"})

	CatalogInvalidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "catalog_invalidations_total",
		Help:      "Catalog cache invalidations triggered by filesystem events.",
	})

	ActivitySubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediavault",
		Name:      "activity_feed_subscribers",
		Help:      "Number of connected admin activity feed clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StreamRequestsTotal,
		StreamBytesTotal,
		StreamAbortsTotal,
		ActiveStreams,
		PlaybackStartsTotal,
		ProgressSavesTotal,
		CatalogCacheTotal,
		CatalogInvalidationsTotal,
		ActivitySubscribers,
	)
}
