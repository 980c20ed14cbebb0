package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/llm"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/prompts"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/retry"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

// plateauLimit is the number of consecutive below-threshold improvements
// tolerated before the loop concludes it has stalled.
const plateauLimit = 2

// SelfCorrectionEngine repairs a failed validation by asking the model for
// a corrected statement and re-validating each candidate. The loop is
// bounded by attempt count, wall time, and plateau detection, and it never
// returns an error: the best result seen so far always comes back with the
// full attempt history attached.
type SelfCorrectionEngine interface {
	Correct(ctx context.Context, req *models.ValidationRequest, baseline *models.ValidationResult) *models.ValidationResult
}

type selfCorrectionEngine struct {
	corrector    llm.SQLCorrector
	cfg          models.SelfCorrectionConfiguration
	orchestrator ValidationOrchestrator
	provider     schema.MetadataProvider
	retryCfg     *retry.Config
	logger       *zap.Logger
}

// NewSelfCorrectionEngine creates the correction loop around a corrector
// and the orchestrator used for candidate re-validation.
func NewSelfCorrectionEngine(
	corrector llm.SQLCorrector,
	cfg models.SelfCorrectionConfiguration,
	orchestrator ValidationOrchestrator,
	provider schema.MetadataProvider,
	logger *zap.Logger,
) SelfCorrectionEngine {
	return &selfCorrectionEngine{
		corrector:    corrector,
		cfg:          cfg,
		orchestrator: orchestrator,
		provider:     provider,
		retryCfg:     retry.DefaultConfig(),
		logger:       logger.Named("self-correction"),
	}
}

var _ SelfCorrectionEngine = (*selfCorrectionEngine)(nil)

// Correct runs the bounded correction loop and returns the best result.
func (e *selfCorrectionEngine) Correct(ctx context.Context, req *models.ValidationRequest, baseline *models.ValidationResult) *models.ValidationResult {
	if e.corrector == nil || e.cfg.MaxCorrectionAttempts <= 0 {
		return baseline
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CorrectionTimeout)
	defer cancel()

	best := baseline
	current := baseline
	currentSQL := baseline.ValidatedSQL
	var history []models.SelfCorrectionAttempt
	lowImprovements := 0
	stalled := make(map[models.CorrectionStrategy]bool)

	for attempt := 1; attempt <= e.cfg.MaxCorrectionAttempts; attempt++ {
		if ctx.Err() != nil {
			e.logger.Warn("correction loop timed out",
				zap.String("request_id", req.RequestID.String()),
				zap.Int("attempts", attempt-1))
			break
		}

		strategy := e.pickStrategy(current, attempt, stalled)
		candidate, record := e.attempt(ctx, req, current, currentSQL, strategy, attempt)
		if record == nil {
			break
		}
		history = append(history, *record)

		if candidate == nil {
			break
		}

		improvement := candidate.OverallScore - current.OverallScore
		if candidate.OverallScore > best.OverallScore {
			best = candidate
		}
		if candidate.IsValid {
			best = candidate
			break
		}

		if improvement <= 0 {
			stalled[strategy] = true
		}
		if improvement < e.cfg.MinImprovementThreshold {
			lowImprovements++
			if lowImprovements >= plateauLimit {
				e.logger.Info("correction loop plateaued",
					zap.String("request_id", req.RequestID.String()),
					zap.Int("attempts", attempt))
				break
			}
		} else {
			lowImprovements = 0
		}

		if improvement > 0 {
			current = candidate
			currentSQL = candidate.ValidatedSQL
		}
	}

	final := *best
	final.RequestID = baseline.RequestID
	final.OriginalSQL = baseline.OriginalSQL
	final.CorrectionHistory = history
	final.IsSelfCorrected = len(history) > 0 && history[len(history)-1].WasSuccessful
	return &final
}

// attempt runs one correction cycle: generate a candidate, re-validate it,
// and record the outcome. A nil record means the loop should stop without
// recording (context gone before any work happened); a nil candidate with a
// non-nil record means the attempt failed permanently.
func (e *selfCorrectionEngine) attempt(
	ctx context.Context,
	req *models.ValidationRequest,
	current *models.ValidationResult,
	currentSQL string,
	strategy models.CorrectionStrategy,
	attemptNumber int,
) (*models.ValidationResult, *models.SelfCorrectionAttempt) {
	record := &models.SelfCorrectionAttempt{
		AttemptNumber:    attemptNumber,
		AttemptTimestamp: time.Now().UTC(),
		Strategy:         strategy,
		OriginalSQL:      currentSQL,
	}

	correctionReq := &llm.CorrectionRequest{
		SQL:           currentSQL,
		Question:      req.OriginalQuery,
		Strategy:      strategy,
		Issues:        current.AllIssues(),
		SchemaContext: e.schemaContext(ctx, currentSQL),
	}

	var correction *llm.CorrectionResult
	err := retry.DoIfRetryable(ctx, e.retryCfg, func() error {
		var correctErr error
		correction, correctErr = e.corrector.Correct(ctx, correctionReq)
		return correctErr
	})
	if err != nil {
		e.logger.Warn("correction generation failed",
			zap.String("request_id", req.RequestID.String()),
			zap.String("strategy", string(strategy)),
			zap.Error(err))
		return nil, record
	}

	record.CorrectedSQL = correction.CorrectedSQL
	record.CorrectionReason = correction.Reason
	record.IssuesAddressed = correction.IssuesAddressed

	if correction.CorrectedSQL == currentSQL {
		e.logger.Info("corrector returned the statement unchanged",
			zap.String("request_id", req.RequestID.String()),
			zap.String("strategy", string(strategy)))
		return nil, record
	}

	candidateReq := *req
	candidateReq.SQL = correction.CorrectedSQL
	candidateReq.EnableSelfCorrection = false

	candidate, err := e.orchestrator.ValidateQuery(ctx, &candidateReq)
	if err != nil {
		e.logger.Warn("candidate re-validation failed",
			zap.String("request_id", req.RequestID.String()),
			zap.Error(err))
		return nil, record
	}

	candidate.CorrectionReason = correction.Reason
	record.ImprovementScore = candidate.OverallScore - current.OverallScore
	record.WasSuccessful = candidate.IsValid

	e.logger.Info("correction attempt evaluated",
		zap.String("request_id", req.RequestID.String()),
		zap.Int("attempt", attemptNumber),
		zap.String("strategy", string(strategy)),
		zap.Float64("improvement", record.ImprovementScore),
		zap.Bool("candidate_valid", candidate.IsValid))

	return candidate, record
}

// pickStrategy chooses the configured strategy whose stage scored lowest in
// the current result, rotating away from strategies that already failed to
// improve the score. A result without failing stages falls back to rotating
// through the remaining configured order; once every strategy has stalled,
// the full list is back in play.
func (e *selfCorrectionEngine) pickStrategy(current *models.ValidationResult, attempt int, stalled map[models.CorrectionStrategy]bool) models.CorrectionStrategy {
	strategies := e.cfg.CorrectionStrategies
	if len(strategies) == 0 {
		strategies = []models.CorrectionStrategy{
			models.StrategySemantic, models.StrategySchema, models.StrategyBusinessLogic,
		}
	}

	remaining := make([]models.CorrectionStrategy, 0, len(strategies))
	for _, strategy := range strategies {
		if !stalled[strategy] {
			remaining = append(remaining, strategy)
		}
	}
	if len(remaining) == 0 {
		remaining = strategies
	}

	chosen := remaining[(attempt-1)%len(remaining)]
	lowest := 2.0
	for _, strategy := range remaining {
		stage := current.Stage(strategy.ValidationType())
		if stage == nil || !stage.Executed {
			continue
		}
		if stage.Score < lowest {
			lowest = stage.Score
			chosen = strategy
		}
	}
	return chosen
}

// schemaContext renders the snapshot slice relevant to the statement for
// the correction prompt. Best effort: a missing snapshot just means the
// model corrects without schema grounding.
func (e *selfCorrectionEngine) schemaContext(ctx context.Context, sqlText string) string {
	if e.provider == nil {
		return ""
	}

	tables := sql.Analyze(sqlText).TableNames()
	snapshot, err := e.provider.Resolve(ctx, tables)
	if err != nil || snapshot == nil {
		return ""
	}

	var rendered []prompts.SchemaTable
	for _, name := range tables {
		table := snapshot.Table(name)
		if table == nil {
			continue
		}
		schemaTable := prompts.SchemaTable{
			Name:            table.Name,
			RequiredFilters: table.RequiredFilters,
		}
		for _, col := range table.Columns {
			schemaTable.Columns = append(schemaTable.Columns, prompts.SchemaColumn{
				Name:      col.Name,
				DataType:  col.DataType,
				Sensitive: col.IsSensitive,
			})
		}
		rendered = append(rendered, schemaTable)
	}
	return prompts.RenderSchemaContext(rendered)
}
