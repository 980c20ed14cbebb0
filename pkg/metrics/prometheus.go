// Package metrics exposes pipeline telemetry to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/services"
)

// PrometheusSink publishes validation telemetry as Prometheus metrics.
type PrometheusSink struct {
	validations *prometheus.CounterVec
	scores      prometheus.Histogram
	stageScores *prometheus.HistogramVec
	durations   prometheus.Histogram
	corrections *prometheus.CounterVec
}

var _ services.MetricsSink = (*PrometheusSink)(nil)

// NewPrometheusSink registers the pipeline metrics with the given registerer.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlguard",
			Name:      "validations_total",
			Help:      "Completed validation pipeline runs by outcome.",
		}, []string{"outcome"}),
		scores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sqlguard",
			Name:      "validation_score",
			Help:      "Overall validation score distribution.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		stageScores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sqlguard",
			Name:      "stage_score",
			Help:      "Per-stage validation score distribution.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"stage"}),
		durations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sqlguard",
			Name:      "validation_duration_seconds",
			Help:      "Wall time of validation pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		corrections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlguard",
			Name:      "correction_attempts_total",
			Help:      "Self-correction attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveValidation records one completed pipeline run.
func (s *PrometheusSink) ObserveValidation(result *models.ValidationResult) {
	outcome := "fail"
	if result.IsValid {
		outcome = "pass"
	}
	s.validations.WithLabelValues(outcome).Inc()
	s.scores.Observe(result.OverallScore)
	s.durations.Observe(result.Duration.Seconds())

	for i := range result.Stages {
		stage := &result.Stages[i]
		if stage.Executed {
			s.stageScores.WithLabelValues(string(stage.Type)).Observe(stage.Score)
		}
	}
}

// ObserveCorrection records one self-correction attempt.
func (s *PrometheusSink) ObserveCorrection(attempt *models.SelfCorrectionAttempt) {
	outcome := "fail"
	if attempt.WasSuccessful {
		outcome = "pass"
	}
	s.corrections.WithLabelValues(outcome).Inc()
}

// Handler returns the exposition endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
