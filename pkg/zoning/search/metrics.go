package search

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zoning_retrieval_cache_hits_total",
		Help: "Retrieval cache hits",
	})
	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zoning_retrieval_cache_misses_total",
		Help: "Retrieval cache misses",
	})
	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zoning_retrieval_cache_evictions_total",
		Help: "Entries evicted because the cache was full",
	})
	backendQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoning_backend_queries_total",
		Help: "Backend queries issued per strategy",
	}, []string{"strategy"})
	backendErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoning_backend_errors_total",
		Help: "Backend query failures per strategy",
	}, []string{"strategy"})
	backendDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoning_backend_duration_ms",
		Help:    "Backend query latency in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"strategy"})
	retrievedPassages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zoning_retrieved_passages",
		Help:    "Passages kept after deduplication",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
	})
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
	prometheus.MustRegister(cacheEvictionsTotal)
	prometheus.MustRegister(backendQueriesTotal)
	prometheus.MustRegister(backendErrorsTotal)
	prometheus.MustRegister(backendDurationMs)
	prometheus.MustRegister(retrievedPassages)
}
