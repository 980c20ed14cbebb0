package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/logging"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/retry"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/validators"
)

// ValidationOrchestrator runs the static validation stages against one
// statement and aggregates their outcomes into a single scored result.
// Dry-run execution and self-correction are layered on top by the query
// validation service.
type ValidationOrchestrator interface {
	ValidateQuery(ctx context.Context, req *models.ValidationRequest) (*models.ValidationResult, error)
}

type validationOrchestrator struct {
	cfg      *config.ValidationConfig
	security validators.SecurityValidator
	semantic validators.SemanticValidator
	schema   validators.SchemaComplianceValidator
	business validators.BusinessLogicValidator
	provider schema.MetadataProvider
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewValidationOrchestrator wires the four static validators and the
// metadata provider into an orchestrator.
func NewValidationOrchestrator(
	cfg *config.ValidationConfig,
	security validators.SecurityValidator,
	semantic validators.SemanticValidator,
	schemaValidator validators.SchemaComplianceValidator,
	business validators.BusinessLogicValidator,
	provider schema.MetadataProvider,
	logger *zap.Logger,
) ValidationOrchestrator {
	return &validationOrchestrator{
		cfg:      cfg,
		security: security,
		semantic: semantic,
		schema:   schemaValidator,
		business: business,
		provider: provider,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("orchestrator"),
	}
}

var _ ValidationOrchestrator = (*validationOrchestrator)(nil)

// ValidateQuery runs the stages selected by the request's level, skipping
// the ones the caller opted out of. The security stage always runs first
// and synchronously; a critical security finding short-circuits the rest.
func (o *validationOrchestrator) ValidateQuery(ctx context.Context, req *models.ValidationRequest) (*models.ValidationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.ValidationResult{
		RequestID:    req.RequestID,
		OriginalSQL:  req.SQL,
		ValidatedSQL: req.SQL,
	}

	o.runStages(ctx, req, result)
	o.score(req, result)
	result.Duration = time.Since(start)

	o.logger.Info("validation completed",
		zap.String("request_id", req.RequestID.String()),
		zap.String("level", string(req.Level)),
		zap.Bool("is_valid", result.IsValid),
		zap.Float64("overall_score", result.OverallScore),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (o *validationOrchestrator) runStages(ctx context.Context, req *models.ValidationRequest, result *models.ValidationResult) {
	stages := req.Level.StaticStages()

	if req.ShouldSkip(models.TypeSecurity) {
		result.Stages = append(result.Stages, models.SkippedStage(models.TypeSecurity, "skipped by request"))
	} else {
		securityOutcome := o.security.Validate(req)
		result.Stages = append(result.Stages, securityOutcome)

		if securityOutcome.HasCritical() {
			o.logger.Warn("security stage failed, short-circuiting",
				zap.String("request_id", req.RequestID.String()),
				zap.String("query", logging.SanitizeQuery(req.SQL)))
			for _, stageType := range stages[1:] {
				result.Stages = append(result.Stages,
					models.SkippedStage(stageType, "skipped after critical security failure"))
			}
			return
		}
	}

	remaining := stagesAfterSecurity(stages)
	if len(remaining) == 0 {
		return
	}

	analysis := sql.Analyze(req.SQL)

	var snapshot *schema.Snapshot
	var snapshotErr error
	if needsSnapshot(remaining, req) {
		snapshot, snapshotErr = o.resolveSnapshot(ctx, analysis.TableNames())
	}

	outcomes := make([]models.StageOutcome, len(remaining))
	var wg sync.WaitGroup
	for i, stageType := range remaining {
		if req.ShouldSkip(stageType) {
			outcomes[i] = models.SkippedStage(stageType, "skipped by request")
			continue
		}

		wg.Add(1)
		go func(i int, stageType models.ValidationType) {
			defer wg.Done()
			outcomes[i] = o.runStage(req, stageType, analysis, snapshot, snapshotErr)
		}(i, stageType)
	}
	wg.Wait()

	result.Stages = append(result.Stages, outcomes...)
}

func (o *validationOrchestrator) runStage(
	req *models.ValidationRequest,
	stageType models.ValidationType,
	analysis *sql.Analysis,
	snapshot *schema.Snapshot,
	snapshotErr error,
) models.StageOutcome {
	switch stageType {
	case models.TypeSemantic:
		return o.semantic.Validate(req, analysis)
	case models.TypeSchema:
		if snapshotErr != nil {
			return models.IndeterminateStage(models.TypeSchema, snapshotErr)
		}
		return o.schema.Validate(req, analysis, snapshot)
	case models.TypeBusinessLogic:
		if snapshotErr != nil {
			return models.IndeterminateStage(models.TypeBusinessLogic, snapshotErr)
		}
		return o.business.Validate(req, analysis, snapshot)
	default:
		return models.SkippedStage(stageType, "stage not implemented")
	}
}

// resolveSnapshot fetches the schema snapshot once per request with retry;
// every snapshot-dependent stage reads the same copy.
func (o *validationOrchestrator) resolveSnapshot(ctx context.Context, tables []string) (*schema.Snapshot, error) {
	var snapshot *schema.Snapshot
	err := retry.Do(ctx, o.retryCfg, func() error {
		var resolveErr error
		snapshot, resolveErr = o.provider.Resolve(ctx, tables)
		return resolveErr
	})
	if err != nil {
		o.logger.Warn("schema snapshot unavailable", zap.Error(err))
		return nil, err
	}
	return snapshot, nil
}

// score computes the weighted overall score across executed stages and
// derives the pass/fail and correctability flags.
func (o *validationOrchestrator) score(req *models.ValidationRequest, result *models.ValidationResult) {
	var weightSum, weighted float64
	for i := range result.Stages {
		stage := &result.Stages[i]
		if !stage.Executed {
			continue
		}
		weight := o.cfg.StageWeight(stage.Type)
		if weight <= 0 {
			continue
		}
		weightSum += weight
		weighted += weight * stage.Score
	}

	if weightSum > 0 {
		result.OverallScore = weighted / weightSum
	}

	threshold := o.cfg.ThresholdFor(req.Level)
	hasCritical := result.HasCritical()
	result.IsValid = result.OverallScore >= threshold && !hasCritical
	result.CanSelfCorrect = req.EnableSelfCorrection && !result.IsValid && !result.HasUnfixableCritical()
}

func stagesAfterSecurity(stages []models.ValidationType) []models.ValidationType {
	for i, stageType := range stages {
		if stageType == models.TypeSecurity {
			return stages[i+1:]
		}
	}
	return stages
}

func needsSnapshot(stages []models.ValidationType, req *models.ValidationRequest) bool {
	for _, stageType := range stages {
		if req.ShouldSkip(stageType) {
			continue
		}
		if stageType == models.TypeSchema || stageType == models.TypeBusinessLogic {
			return true
		}
	}
	return false
}
