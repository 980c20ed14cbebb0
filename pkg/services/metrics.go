// Package services wires the validation stages, the dry-run executor, and
// the self-correction loop into the query validation pipeline.
package services

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

// MetricsSink receives pipeline telemetry as it happens. Implementations
// must be safe for concurrent use.
type MetricsSink interface {
	ObserveValidation(result *models.ValidationResult)
	ObserveCorrection(attempt *models.SelfCorrectionAttempt)
}

type stageCounters struct {
	executions int64
	failures   int64
	scoreSum   float64
}

// MetricsCollector aggregates pipeline telemetry in memory and forwards
// each event to the configured sinks.
type MetricsCollector struct {
	mu                    sync.Mutex
	total                 int64
	successful            int64
	scoreSum              float64
	correctionAttempts    int64
	correctionSuccesses   int64
	stages                map[models.ValidationType]*stageCounters
	sinks                 []MetricsSink
	logger                *zap.Logger
}

// NewMetricsCollector creates a collector forwarding to the given sinks.
func NewMetricsCollector(logger *zap.Logger, sinks ...MetricsSink) *MetricsCollector {
	return &MetricsCollector{
		stages: make(map[models.ValidationType]*stageCounters),
		sinks:  sinks,
		logger: logger.Named("metrics"),
	}
}

// RecordValidation folds one completed pipeline run into the aggregate.
func (m *MetricsCollector) RecordValidation(result *models.ValidationResult) {
	m.mu.Lock()
	m.total++
	if result.IsValid {
		m.successful++
	}
	m.scoreSum += result.OverallScore

	for i := range result.Stages {
		stage := &result.Stages[i]
		if !stage.Executed {
			continue
		}
		counters, ok := m.stages[stage.Type]
		if !ok {
			counters = &stageCounters{}
			m.stages[stage.Type] = counters
		}
		counters.executions++
		counters.scoreSum += stage.Score
		if stage.Indeterminate || stage.HasCritical() {
			counters.failures++
		}
	}
	m.mu.Unlock()

	for _, sink := range m.sinks {
		sink.ObserveValidation(result)
	}
}

// RecordCorrection folds one self-correction attempt into the aggregate.
func (m *MetricsCollector) RecordCorrection(attempt *models.SelfCorrectionAttempt) {
	m.mu.Lock()
	m.correctionAttempts++
	if attempt.WasSuccessful {
		m.correctionSuccesses++
	}
	m.mu.Unlock()

	for _, sink := range m.sinks {
		sink.ObserveCorrection(attempt)
	}
}

// Snapshot returns a copy of the aggregate telemetry.
func (m *MetricsCollector) Snapshot() models.ValidationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := models.ValidationMetrics{
		TotalValidations:          m.total,
		SuccessfulValidations:     m.successful,
		SelfCorrectionAttempts:    m.correctionAttempts,
		SuccessfulSelfCorrections: m.correctionSuccesses,
		ValidationTypeMetrics:     make(map[models.ValidationType]models.ValidationTypeMetrics, len(m.stages)),
	}
	if m.total > 0 {
		snapshot.AverageValidationScore = m.scoreSum / float64(m.total)
	}
	for stageType, counters := range m.stages {
		typeMetrics := models.ValidationTypeMetrics{
			Executions: counters.executions,
			Failures:   counters.failures,
		}
		if counters.executions > 0 {
			typeMetrics.AverageScore = counters.scoreSum / float64(counters.executions)
		}
		snapshot.ValidationTypeMetrics[stageType] = typeMetrics
	}
	return snapshot
}
