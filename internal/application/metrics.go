package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments observed by the workflow services.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	Decryptions     *prometheus.CounterVec
	ReloadDuration  prometheus.Histogram
	RecordsTotal    prometheus.Gauge
	RecordsVerified prometheus.Gauge
}

// NewMetrics creates and registers the workflow metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noisemap",
			Name:      "submissions_total",
			Help:      "Submission workflow invocations by outcome.",
		}, []string{"outcome"}),
		Decryptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noisemap",
			Name:      "decryptions_total",
			Help:      "Decryption workflow invocations by outcome.",
		}, []string{"outcome"}),
		ReloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "noisemap",
			Name:      "reload_duration_seconds",
			Help:      "Duration of record store reloads.",
			Buckets:   prometheus.DefBuckets,
		}),
		RecordsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "noisemap",
			Name:      "records",
			Help:      "Records in the current store snapshot.",
		}),
		RecordsVerified: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "noisemap",
			Name:      "records_verified",
			Help:      "Verified records in the current store snapshot.",
		}),
	}
}

// Workflow outcome label values.
const (
	OutcomeSucceeded       = "succeeded"
	OutcomeFailed          = "failed"
	OutcomeRejected        = "rejected"
	OutcomeInvalid         = "invalid"
	OutcomeShortCircuit    = "already_verified"
	OutcomeRaceAbsorbed    = "race_absorbed"
)
