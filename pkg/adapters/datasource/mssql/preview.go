package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/logging"
)

// Preview compiles the statement under SHOWPLAN_ALL, which makes the server
// return the estimated plan instead of executing anything. SHOWPLAN is
// session-scoped, so a dedicated connection is pinned for the duration.
func (a *Adapter) Preview(ctx context.Context, sqlText string) (*datasource.PreviewResult, error) {
	start := time.Now()

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET SHOWPLAN_ALL ON"); err != nil {
		return nil, fmt.Errorf("failed to enable plan mode: %w", err)
	}
	defer conn.ExecContext(ctx, "SET SHOWPLAN_ALL OFF")

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		a.logger.Debug("plan request rejected",
			zap.String("query", logging.SanitizeQuery(sqlText)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to plan statement: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read plan columns: %w", err)
	}

	var planRows [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			values[i] = new(sql.NullString)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}

		row := make([]string, len(cols))
		for i, v := range values {
			if ns := v.(*sql.NullString); ns.Valid {
				row[i] = ns.String
			}
		}
		planRows = append(planRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plan rows: %w", err)
	}

	result := planFromRows(cols, planRows)
	result.Elapsed = time.Since(start)

	a.logger.Debug("statement planned",
		zap.Int64("estimated_rows", result.EstimatedRows),
		zap.Float64("estimated_cost", result.EstimatedCost),
		zap.Duration("elapsed", result.Elapsed))

	return result, nil
}

// planFromRows extracts the statement-level estimates from a SHOWPLAN_ALL
// result set. The first row describes the whole statement; its EstimateRows
// and TotalSubtreeCost cover the entire plan tree beneath it.
func planFromRows(cols []string, rows [][]string) *datasource.PreviewResult {
	stmtIdx := columnIndex(cols, "StmtText")
	rowsIdx := columnIndex(cols, "EstimateRows")
	costIdx := columnIndex(cols, "TotalSubtreeCost")

	result := &datasource.PreviewResult{}

	var plan strings.Builder
	for _, row := range rows {
		if stmtIdx >= 0 && row[stmtIdx] != "" {
			if plan.Len() > 0 {
				plan.WriteByte('\n')
			}
			plan.WriteString(row[stmtIdx])
		}
	}
	result.Plan = plan.String()

	if len(rows) == 0 {
		result.Warnings = append(result.Warnings, "server returned no plan rows")
		return result
	}

	first := rows[0]
	if rowsIdx >= 0 {
		if estimate, err := strconv.ParseFloat(first[rowsIdx], 64); err == nil {
			result.EstimatedRows = int64(math.Round(estimate))
		} else {
			result.Warnings = append(result.Warnings, "row estimate unavailable")
		}
	}
	if costIdx >= 0 {
		if cost, err := strconv.ParseFloat(first[costIdx], 64); err == nil {
			result.EstimatedCost = cost
		} else {
			result.Warnings = append(result.Warnings, "cost estimate unavailable")
		}
	}

	return result
}

func columnIndex(cols []string, name string) int {
	for i, col := range cols {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}
