package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricIngestRuns = "ingest_runs_total"
	MetricIngestRows = "ingest_rows_total"
	MetricLookups    = "lookups_total"
)

// Outcome labels of CounterIngestRuns.
const (
	OutcomeLoaded   = "loaded"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var CounterIngestRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clubpower",
		Name:      MetricIngestRuns,
		Help:      "Ingest runs by outcome.",
	},
	[]string{
		"outcome",
	},
)

var CounterIngestRows = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clubpower",
		Name:      MetricIngestRows,
		Help:      "Feed rows by pipeline stage: read, rejected, duplicate, loaded.",
	},
	[]string{
		"stage",
	},
)

var CounterLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clubpower",
		Name:      MetricLookups,
		Help:      "Read endpoint lookups by resource and status code.",
	},
	[]string{
		"resource",
		"code",
	},
)

func init() {
	prometheus.MustRegister(CounterIngestRuns)
	prometheus.MustRegister(CounterIngestRows)
	prometheus.MustRegister(CounterLookups)
}
