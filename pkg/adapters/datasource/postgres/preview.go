package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/logging"
)

const explainPrefix = "EXPLAIN (FORMAT JSON) "

// Preview plans the statement inside a read-only transaction that is always
// rolled back. EXPLAIN without ANALYZE never touches table data, the
// transaction is a second line of defense.
func (a *Adapter) Preview(ctx context.Context, sqlText string) (*datasource.PreviewResult, error) {
	start := time.Now()

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin preview transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var planJSON []byte
	if err := tx.QueryRow(ctx, explainPrefix+sqlText).Scan(&planJSON); err != nil {
		a.logger.Debug("plan request rejected",
			zap.String("query", logging.SanitizeQuery(sqlText)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to plan statement: %w", err)
	}

	result, err := parseExplainJSON(planJSON)
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)

	a.logger.Debug("statement planned",
		zap.Int64("estimated_rows", result.EstimatedRows),
		zap.Float64("estimated_cost", result.EstimatedCost),
		zap.Duration("elapsed", result.Elapsed))

	return result, nil
}

// explainEnvelope mirrors the top level of EXPLAIN (FORMAT JSON) output:
// a one-element array of objects each holding a "Plan" tree.
type explainEnvelope struct {
	Plan explainPlan `json:"Plan"`
}

type explainPlan struct {
	NodeType  string  `json:"Node Type"`
	PlanRows  float64 `json:"Plan Rows"`
	TotalCost float64 `json:"Total Cost"`
}

func parseExplainJSON(data []byte) (*datasource.PreviewResult, error) {
	var envelopes []explainEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to parse execution plan: %w", err)
	}
	if len(envelopes) == 0 {
		return nil, fmt.Errorf("execution plan is empty")
	}

	top := envelopes[0].Plan
	return &datasource.PreviewResult{
		Plan:          string(data),
		EstimatedRows: int64(top.PlanRows),
		EstimatedCost: top.TotalCost,
	}, nil
}
