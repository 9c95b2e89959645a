package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ManagersTotal   *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ManagerDuration prometheus.Histogram
	Significant     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ManagersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rca_managers_processed_total",
			Help: "Total number of managers processed, by status",
		}, []string{"status"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "rca_domain_cache_hits_total",
			Help: "Total number of domain KPI loads served from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "rca_domain_cache_misses_total",
			Help: "Total number of domain KPI loads that went to the database",
		}),
		ManagerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rca_manager_duration_seconds",
			Help:    "Duration of one manager's RCA in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Significant: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rca_significant_pairs_total",
			Help: "Total number of significant pairs found, by signal tier",
		}, []string{"signal"}),
	}
}
