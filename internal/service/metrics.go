package service

import "github.com/prometheus/client_golang/prometheus"

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constraint_analyses_total",
			Help: "Parcel analyses by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	analysisDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "constraint_analysis_duration_ms",
			Help:    "End-to-end duration of a parcel analysis in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	ingestedChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regulation_chunks_ingested_total",
			Help: "Regulation chunks stored per municipality",
		},
		[]string{"municipality"},
	)
)

func init() {
	prometheus.MustRegister(analysesTotal, analysisDurationMs, ingestedChunksTotal)
}
