package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

// QueryValidationService is the full pipeline: static validation, optional
// self-correction of a failed result, and an optional dry-run preview of
// whatever statement survives.
type QueryValidationService interface {
	ValidateQuery(ctx context.Context, req *models.ValidationRequest) (*models.ValidationResult, error)
	Metrics() models.ValidationMetrics
}

type queryValidationService struct {
	orchestrator ValidationOrchestrator
	corrections  SelfCorrectionEngine
	dryRun       DryRunExecutor
	metrics      *MetricsCollector
	correctionOn bool
	dryRunCfg    *config.DryRunConfig
	logger       *zap.Logger
}

// NewQueryValidationService composes the pipeline. The correction engine
// and dry-run executor are optional; a nil engine disables correction even
// for requests that ask for it.
func NewQueryValidationService(
	orchestrator ValidationOrchestrator,
	corrections SelfCorrectionEngine,
	dryRun DryRunExecutor,
	metrics *MetricsCollector,
	correctionCfg *config.CorrectionConfig,
	dryRunCfg *config.DryRunConfig,
	logger *zap.Logger,
) QueryValidationService {
	return &queryValidationService{
		orchestrator: orchestrator,
		corrections:  corrections,
		dryRun:       dryRun,
		metrics:      metrics,
		correctionOn: correctionCfg.Enabled,
		dryRunCfg:    dryRunCfg,
		logger:       logger.Named("query-validation"),
	}
}

var _ QueryValidationService = (*queryValidationService)(nil)

// ValidateQuery runs the pipeline end to end for one request.
func (s *queryValidationService) ValidateQuery(ctx context.Context, req *models.ValidationRequest) (*models.ValidationResult, error) {
	result, err := s.orchestrator.ValidateQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.EnableSelfCorrection && result.CanSelfCorrect && s.correctionOn && s.corrections != nil {
		result = s.corrections.Correct(ctx, req, result)
		for i := range result.CorrectionHistory {
			s.metrics.RecordCorrection(&result.CorrectionHistory[i])
		}
	}

	if req.EnableDryRun {
		s.attachDryRun(ctx, result)
	}

	s.metrics.RecordValidation(result)
	return result, nil
}

// attachDryRun previews the validated statement and folds the outcome into
// the result as an advisory stage. A statement carrying a critical finding
// never reaches the execution engine.
func (s *queryValidationService) attachDryRun(ctx context.Context, result *models.ValidationResult) {
	if result.HasCritical() {
		result.Stages = append(result.Stages,
			models.SkippedStage(models.TypeDryRun, "skipped after critical validation failure"))
		return
	}
	if !s.dryRunCfg.Enabled {
		result.Stages = append(result.Stages,
			models.SkippedStage(models.TypeDryRun, "dry run disabled by configuration"))
		return
	}
	if s.dryRun == nil {
		result.Stages = append(result.Stages,
			models.SkippedStage(models.TypeDryRun, "no execution engine configured"))
		return
	}

	dryRun := s.dryRun.Execute(ctx, result.ValidatedSQL)
	result.DryRun = dryRun

	outcome := models.StageOutcome{
		Type:     models.TypeDryRun,
		Executed: true,
	}
	if dryRun.ExecutedSuccessfully {
		outcome.Score = 1.0
	}
	for _, warning := range dryRun.Warnings {
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeDryRun,
			Category: models.CategoryExecutionWarning,
			Severity: models.SeverityWarning,
			Message:  warning,
		})
		result.Warnings = append(result.Warnings, warning)
	}
	for _, execErr := range dryRun.Errors {
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeDryRun,
			Category: models.CategoryExecutionWarning,
			Severity: models.SeverityError,
			Message:  execErr,
		})
	}
	result.Stages = append(result.Stages, outcome)
}

// Metrics returns the aggregate telemetry snapshot.
func (s *queryValidationService) Metrics() models.ValidationMetrics {
	return s.metrics.Snapshot()
}
