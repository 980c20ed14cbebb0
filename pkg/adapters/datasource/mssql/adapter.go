// Package mssql implements query preview and schema discovery against
// Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource"
)

// Adapter holds a connection pool and implements both datasource ports.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	_ datasource.PreviewExecutor  = (*Adapter)(nil)
	_ datasource.SchemaDiscoverer = (*Adapter)(nil)
)

// New connects to SQL Server and verifies the connection with a ping.
func New(ctx context.Context, connString string, maxConns int, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Adapter{
		db:     db,
		logger: logger.Named("mssql"),
	}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}
