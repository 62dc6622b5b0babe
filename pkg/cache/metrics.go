package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopsaas_cache_results_total",
			Help: "Total cache lookup outcomes.",
		},
		[]string{"result"},
	)
	cacheFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopsaas_cache_flushes_total",
			Help: "Total flush operations per cache.",
		},
		[]string{"cache"},
	)
)

func observeCacheResult(result string) {
	cacheResultsTotal.WithLabelValues(result).Inc()
}

func observeCacheFlush(name string) {
	cacheFlushesTotal.WithLabelValues(name).Inc()
}
