package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
)

const tablesQuery = `
SET NOCOUNT ON;
SELECT s.name AS schema_name, t.name AS table_name, SUM(p.rows) AS row_count
FROM sys.tables t
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.partitions p ON p.object_id = t.object_id AND p.index_id IN (0, 1)
GROUP BY s.name, t.name
ORDER BY s.name, t.name;`

const columnsQuery = `
SET NOCOUNT ON;
SELECT c.name, ty.name AS data_type, c.is_nullable
FROM sys.columns c
JOIN sys.types ty ON ty.user_type_id = c.user_type_id
WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
ORDER BY c.column_id;`

const primaryKeyQuery = `
SET NOCOUNT ON;
SELECT col.name
FROM sys.indexes i
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns col ON col.object_id = ic.object_id AND col.column_id = ic.column_id
WHERE i.is_primary_key = 1
  AND i.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
ORDER BY ic.key_ordinal;`

const foreignKeysQuery = `
SET NOCOUNT ON;
SELECT fk.name AS constraint_name, cp.name AS column_name,
       rt.name AS ref_table, cr.name AS ref_column
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.columns cp ON cp.object_id = fkc.parent_object_id AND cp.column_id = fkc.parent_column_id
JOIN sys.tables rt ON rt.object_id = fkc.referenced_object_id
JOIN sys.columns cr ON cr.object_id = fkc.referenced_object_id AND cr.column_id = fkc.referenced_column_id
WHERE fk.parent_object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
ORDER BY fk.name, fkc.constraint_column_id;`

// Discover reads the live catalog from the sys views.
func (a *Adapter) Discover(ctx context.Context) (*schema.Snapshot, error) {
	rows, err := a.db.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	var tables []schema.Table
	for rows.Next() {
		var t schema.Table
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read table rows: %w", err)
	}
	rows.Close()

	for i := range tables {
		if err := a.discoverTable(ctx, &tables[i]); err != nil {
			return nil, err
		}
	}

	a.logger.Info("catalog discovered", zap.Int("tables", len(tables)))
	return schema.NewSnapshot(tables), nil
}

func (a *Adapter) discoverTable(ctx context.Context, table *schema.Table) error {
	args := []any{
		sql.Named("schema", table.Schema),
		sql.Named("table", table.Name),
	}

	rows, err := a.db.QueryContext(ctx, columnsQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to query columns for %s: %w", table.Name, err)
	}
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan column row: %w", err)
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read column rows: %w", err)
	}
	rows.Close()

	rows, err = a.db.QueryContext(ctx, primaryKeyQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to query primary key for %s: %w", table.Name, err)
	}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan primary key row: %w", err)
		}
		table.PrimaryKey = append(table.PrimaryKey, col)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read primary key rows: %w", err)
	}
	rows.Close()

	return a.discoverForeignKeys(ctx, table, args)
}

func (a *Adapter) discoverForeignKeys(ctx context.Context, table *schema.Table, args []any) error {
	rows, err := a.db.QueryContext(ctx, foreignKeysQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to query foreign keys for %s: %w", table.Name, err)
	}
	defer rows.Close()

	// Rows arrive ordered by constraint then ordinal, so a multi-column
	// foreign key extends the entry opened by its first column.
	lastConstraint := ""
	for rows.Next() {
		var constraintName, columnName, refTable, refColumn string
		if err := rows.Scan(&constraintName, &columnName, &refTable, &refColumn); err != nil {
			return fmt.Errorf("failed to scan foreign key row: %w", err)
		}

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
	return rows.Err()
}
