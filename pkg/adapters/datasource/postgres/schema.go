package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
)

const columnsQuery = `
SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = 'BASE TABLE'
  AND c.table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

const keyColumnsQuery = `
SELECT tc.constraint_type, tc.constraint_name, tc.table_schema, tc.table_name,
       kcu.column_name, ccu.table_name AS ref_table, ccu.column_name AS ref_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`

const rowCountsQuery = `
SELECT schemaname, relname, n_live_tup
FROM pg_stat_user_tables`

// Discover reads the live catalog from information_schema and the planner
// statistics views.
func (a *Adapter) Discover(ctx context.Context) (*schema.Snapshot, error) {
	tables, order, err := a.discoverColumns(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.discoverKeys(ctx, tables); err != nil {
		return nil, err
	}
	if err := a.discoverRowCounts(ctx, tables); err != nil {
		return nil, err
	}

	out := make([]schema.Table, 0, len(order))
	for _, key := range order {
		out = append(out, *tables[key])
	}

	a.logger.Info("catalog discovered", zap.Int("tables", len(out)))
	return schema.NewSnapshot(out), nil
}

func (a *Adapter) discoverColumns(ctx context.Context) (map[string]*schema.Table, []string, error) {
	rows, err := a.pool.Query(ctx, columnsQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*schema.Table)
	var order []string

	for rows.Next() {
		var schemaName, tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, nil, fmt.Errorf("failed to scan column row: %w", err)
		}

		key := schemaName + "." + tableName
		table, ok := tables[key]
		if !ok {
			table = &schema.Table{Name: tableName, Schema: schemaName}
			tables[key] = table
			order = append(order, key)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:       columnName,
			DataType:   dataType,
			IsNullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read column rows: %w", err)
	}
	return tables, order, nil
}

func (a *Adapter) discoverKeys(ctx context.Context, tables map[string]*schema.Table) error {
	rows, err := a.pool.Query(ctx, keyColumnsQuery)
	if err != nil {
		return fmt.Errorf("failed to query key constraints: %w", err)
	}
	defer rows.Close()

	// Rows arrive ordered by constraint then ordinal, so a multi-column
	// foreign key extends the entry opened by its first column.
	lastConstraint := ""
	for rows.Next() {
		var constraintType, constraintName, schemaName, tableName, columnName, refTable, refColumn string
		if err := rows.Scan(&constraintType, &constraintName, &schemaName, &tableName, &columnName, &refTable, &refColumn); err != nil {
			return fmt.Errorf("failed to scan key constraint row: %w", err)
		}

		table, ok := tables[schemaName+"."+tableName]
		if !ok {
			continue
		}

		switch constraintType {
		case "PRIMARY KEY":
			table.PrimaryKey = append(table.PrimaryKey, columnName)
		case "FOREIGN KEY":
			if constraintName == lastConstraint && len(table.ForeignKeys) > 0 {
				last := &table.ForeignKeys[len(table.ForeignKeys)-1]
				last.Columns = append(last.Columns, columnName)
				last.RefColumns = append(last.RefColumns, refColumn)
			} else {
				table.ForeignKeys = append(table.ForeignKeys, schema.ForeignKey{
					Columns:    []string{columnName},
					RefTable:   refTable,
					RefColumns: []string{refColumn},
				})
			}
			lastConstraint = constraintName
		}
	}
	return rows.Err()
}

func (a *Adapter) discoverRowCounts(ctx context.Context, tables map[string]*schema.Table) error {
	rows, err := a.pool.Query(ctx, rowCountsQuery)
	if err != nil {
		return fmt.Errorf("failed to query table statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schemaName, tableName string
		var liveTuples int64
		if err := rows.Scan(&schemaName, &tableName, &liveTuples); err != nil {
			return fmt.Errorf("failed to scan statistics row: %w", err)
		}
		if table, ok := tables[schemaName+"."+tableName]; ok {
			table.RowCount = liveTuples
		}
	}
	return rows.Err()
}
