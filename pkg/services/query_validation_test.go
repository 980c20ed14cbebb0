package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

type stubCorrectionEngine struct {
	calls  int
	result *models.ValidationResult
}

func (s *stubCorrectionEngine) Correct(_ context.Context, _ *models.ValidationRequest, baseline *models.ValidationResult) *models.ValidationResult {
	s.calls++
	if s.result != nil {
		return s.result
	}
	return baseline
}

type stubDryRunExecutor struct {
	calls  int
	result *models.DryRunExecutionResult
}

func (s *stubDryRunExecutor) Execute(_ context.Context, _ string) *models.DryRunExecutionResult {
	s.calls++
	return s.result
}

func newPipeline(orchestrator ValidationOrchestrator, engine SelfCorrectionEngine, dryRun DryRunExecutor) (QueryValidationService, *MetricsCollector) {
	collector := NewMetricsCollector(zap.NewNop())
	service := NewQueryValidationService(
		orchestrator,
		engine,
		dryRun,
		collector,
		&config.CorrectionConfig{Enabled: true},
		&config.DryRunConfig{Enabled: true, MaxRows: 1000, MaxExecutionTimeSecs: 5},
		zap.NewNop(),
	)
	return service, collector
}

func TestQueryValidation_CorrectionInvoked(t *testing.T) {
	baseline := failingBaseline(0.4)
	corrected := scoredResult(0.9, true)
	corrected.IsSelfCorrected = true
	corrected.CorrectionHistory = []models.SelfCorrectionAttempt{
		{AttemptNumber: 1, WasSuccessful: true},
	}

	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{baseline}}
	engine := &stubCorrectionEngine{result: corrected}
	service, collector := newPipeline(orchestrator, engine, nil)

	req := newRequest(baseline.OriginalSQL, "list player names", models.LevelStandard)
	req.EnableSelfCorrection = true

	result, err := service.ValidateQuery(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls)
	assert.True(t, result.IsSelfCorrected)

	snapshot := collector.Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalValidations)
	assert.Equal(t, int64(1), snapshot.SelfCorrectionAttempts)
	assert.Equal(t, int64(1), snapshot.SuccessfulSelfCorrections)
}

func TestQueryValidation_CorrectionNotRequested(t *testing.T) {
	baseline := failingBaseline(0.4)
	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{baseline}}
	engine := &stubCorrectionEngine{}
	service, _ := newPipeline(orchestrator, engine, nil)

	result, err := service.ValidateQuery(context.Background(),
		newRequest(baseline.OriginalSQL, "list player names", models.LevelStandard))
	require.NoError(t, err)

	assert.Equal(t, 0, engine.calls)
	assert.False(t, result.IsSelfCorrected)
}

func TestQueryValidation_CorrectionSkippedWhenValid(t *testing.T) {
	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{scoredResult(0.9, true)}}
	engine := &stubCorrectionEngine{}
	service, _ := newPipeline(orchestrator, engine, nil)

	req := newRequest("SELECT name FROM players WHERE brand_id = 1", "list player names", models.LevelStandard)
	req.EnableSelfCorrection = true

	_, err := service.ValidateQuery(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, engine.calls)
}

func TestQueryValidation_DryRunAttached(t *testing.T) {
	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{scoredResult(0.9, true)}}
	dryRun := &stubDryRunExecutor{result: &models.DryRunExecutionResult{
		CanExecute:           true,
		ExecutedSuccessfully: true,
		EstimatedRowCount:    10,
		Warnings:             []string{"estimated row count 10 exceeds the configured limit of 5"},
	}}
	service, _ := newPipeline(orchestrator, nil, dryRun)

	req := newRequest("SELECT name FROM players WHERE brand_id = 1", "list player names", models.LevelStandard)
	req.EnableDryRun = true

	result, err := service.ValidateQuery(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, dryRun.calls)
	require.NotNil(t, result.DryRun)

	stage := result.Stage(models.TypeDryRun)
	require.NotNil(t, stage)
	assert.True(t, stage.Executed)
	assert.Equal(t, 1.0, stage.Score)
	require.Len(t, stage.Issues, 1)
	assert.Equal(t, models.CategoryExecutionWarning, stage.Issues[0].Category)
	assert.Equal(t, result.DryRun.Warnings, result.Warnings)
}

func TestQueryValidation_DryRunSkippedAfterCriticalFailure(t *testing.T) {
	rejected := &models.ValidationResult{
		OverallScore: 0.0,
		Stages: []models.StageOutcome{
			{Type: models.TypeSecurity, Executed: true, Score: 0.0, Issues: []models.ValidationIssue{
				{
					Type:     models.TypeSecurity,
					Category: models.CategoryDestructiveStatement,
					Severity: models.SeverityCritical,
					Message:  "DROP statements are not allowed",
				},
			}},
		},
	}
	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{rejected}}
	dryRun := &stubDryRunExecutor{result: &models.DryRunExecutionResult{ExecutedSuccessfully: true}}
	service, _ := newPipeline(orchestrator, nil, dryRun)

	req := newRequest("DROP TABLE players", "remove the players table", models.LevelBasic)
	req.EnableDryRun = true

	result, err := service.ValidateQuery(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, dryRun.calls, "rejected statements must never reach the execution engine")
	assert.Nil(t, result.DryRun)

	stage := result.Stage(models.TypeDryRun)
	require.NotNil(t, stage)
	assert.False(t, stage.Executed)
	assert.Contains(t, stage.SkipReason, "critical")
}

func TestQueryValidation_DryRunDisabledByConfig(t *testing.T) {
	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{scoredResult(0.9, true)}}
	dryRun := &stubDryRunExecutor{result: &models.DryRunExecutionResult{}}

	collector := NewMetricsCollector(zap.NewNop())
	service := NewQueryValidationService(
		orchestrator,
		nil,
		dryRun,
		collector,
		&config.CorrectionConfig{Enabled: true},
		&config.DryRunConfig{Enabled: false},
		zap.NewNop(),
	)

	req := newRequest("SELECT name FROM players WHERE brand_id = 1", "list player names", models.LevelStandard)
	req.EnableDryRun = true

	result, err := service.ValidateQuery(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, dryRun.calls)
	stage := result.Stage(models.TypeDryRun)
	require.NotNil(t, stage)
	assert.False(t, stage.Executed)
	assert.Contains(t, stage.SkipReason, "disabled")
}

func TestQueryValidation_DryRunNotRequested(t *testing.T) {
	orchestrator := &stubOrchestrator{results: []*models.ValidationResult{scoredResult(0.9, true)}}
	dryRun := &stubDryRunExecutor{result: &models.DryRunExecutionResult{}}
	service, _ := newPipeline(orchestrator, nil, dryRun)

	result, err := service.ValidateQuery(context.Background(),
		newRequest("SELECT name FROM players WHERE brand_id = 1", "list player names", models.LevelStandard))
	require.NoError(t, err)

	assert.Equal(t, 0, dryRun.calls)
	assert.Nil(t, result.Stage(models.TypeDryRun))
}
