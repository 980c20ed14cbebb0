package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/logging"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/retry"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

// DryRunExecutor previews a statement against the live execution engine
// without running it. The result is advisory: a failed or timed-out preview
// never fails the pipeline on its own.
type DryRunExecutor interface {
	Execute(ctx context.Context, sqlText string) *models.DryRunExecutionResult
}

type dryRunExecutor struct {
	previewer datasource.PreviewExecutor
	cfg       *config.DryRunConfig
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// NewDryRunExecutor creates a dry-run executor backed by the given preview
// engine. The previewer may be nil when no datasource is configured.
func NewDryRunExecutor(previewer datasource.PreviewExecutor, cfg *config.DryRunConfig, logger *zap.Logger) DryRunExecutor {
	return &dryRunExecutor{
		previewer: previewer,
		cfg:       cfg,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("dry-run"),
	}
}

var _ DryRunExecutor = (*dryRunExecutor)(nil)

// Execute previews the statement under the configured deadline. Only plain
// reads are previewed; anything else is refused before it can reach the
// execution engine.
func (e *dryRunExecutor) Execute(ctx context.Context, sqlText string) *models.DryRunExecutionResult {
	result := &models.DryRunExecutionResult{}

	if stmtType := sql.DetectStatementType(sqlText); !stmtType.IsReadOnly() {
		result.Errors = append(result.Errors,
			fmt.Sprintf("refusing to preview a %s statement: dry run is read-only", stmtType))
		return result
	}

	if e.previewer == nil {
		result.Warnings = append(result.Warnings, "dry run skipped: no execution engine configured")
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.MaxExecutionTime())
	defer cancel()

	var preview *datasource.PreviewResult
	err := retry.DoIfRetryable(ctx, e.retryCfg, func() error {
		var previewErr error
		preview, previewErr = e.previewer.Preview(ctx, sqlText)
		return previewErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("dry run timed out after %s", e.cfg.MaxExecutionTime()))
			return result
		}

		e.logger.Warn("dry run preview failed",
			zap.String("query", logging.SanitizeQuery(sqlText)),
			zap.Error(err))
		result.Errors = append(result.Errors, logging.SanitizeError(err))
		return result
	}

	result.CanExecute = true
	result.ExecutedSuccessfully = true
	result.EstimatedExecutionTime = preview.Elapsed
	result.EstimatedRowCount = preview.EstimatedRows
	result.ExecutionPlan = preview.Plan
	result.Warnings = append(result.Warnings, preview.Warnings...)
	if preview.EstimatedCost > 0 {
		result.Performance = &models.PerformanceMetrics{EstimatedCost: preview.EstimatedCost}
	}

	if e.cfg.MaxRows > 0 && preview.EstimatedRows > int64(e.cfg.MaxRows) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("estimated row count %d exceeds the configured limit of %d",
				preview.EstimatedRows, e.cfg.MaxRows))
	}

	return result
}
