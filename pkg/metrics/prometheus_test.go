package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

func TestPrometheusSink_ObserveValidation(t *testing.T) {
	sink := NewPrometheusSink(prometheus.NewRegistry())

	sink.ObserveValidation(&models.ValidationResult{
		IsValid:      true,
		OverallScore: 0.9,
		Duration:     120 * time.Millisecond,
		Stages: []models.StageOutcome{
			{Type: models.TypeSecurity, Executed: true, Score: 1.0},
			{Type: models.TypeSemantic, Executed: false},
		},
	})
	sink.ObserveValidation(&models.ValidationResult{
		OverallScore: 0.3,
		Stages: []models.StageOutcome{
			{Type: models.TypeSecurity, Executed: true, Score: 0.3},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.validations.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.validations.WithLabelValues("fail")))

	// Skipped stages contribute no stage-score series; both runs executed
	// only the security stage plus one semantic skip.
	assert.Equal(t, 1, testutil.CollectAndCount(sink.stageScores))
}

func TestPrometheusSink_ObserveCorrection(t *testing.T) {
	sink := NewPrometheusSink(prometheus.NewRegistry())

	sink.ObserveCorrection(&models.SelfCorrectionAttempt{WasSuccessful: true})
	sink.ObserveCorrection(&models.SelfCorrectionAttempt{})
	sink.ObserveCorrection(&models.SelfCorrectionAttempt{})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.corrections.WithLabelValues("pass")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.corrections.WithLabelValues("fail")))
}
