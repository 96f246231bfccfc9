package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "gitexplorer"
	metricsSubsystem = "cache"
)

type cacheMetrics struct {
	hits              *prometheus.CounterVec
	misses            *prometheus.CounterVec
	readErrors        *prometheus.CounterVec
	invalidations     prometheus.Counter
	schemaRecreations prometheus.Counter
}

var (
	defaultCacheMetricsOnce sync.Once
	defaultCacheMetricsInst *cacheMetrics
)

func getDefaultCacheMetrics() *cacheMetrics {
	defaultCacheMetricsOnce.Do(func() {
		defaultCacheMetricsInst = newCacheMetrics(prometheus.DefaultRegisterer)
	})
	return defaultCacheMetricsInst
}

func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	m := &cacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "hits_total",
			Help:      "Cache reads that returned a stored record.",
		}, []string{"table"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "misses_total",
			Help:      "Cache reads that found no record.",
		}, []string{"table"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "read_errors_total",
			Help:      "Cache read failures surfaced as misses.",
		}, []string{"table"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "invalidations_total",
			Help:      "Per-repository invalidation sweeps.",
		}),
		schemaRecreations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "schema_recreations_total",
			Help:      "Times the store was destroyed and rebuilt.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.readErrors, m.invalidations, m.schemaRecreations)
	}
	return m
}
