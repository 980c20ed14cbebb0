// Package postgres implements query preview and schema discovery against
// PostgreSQL using pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource"
)

// Adapter holds a connection pool and implements both datasource ports.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var (
	_ datasource.PreviewExecutor  = (*Adapter)(nil)
	_ datasource.SchemaDiscoverer = (*Adapter)(nil)
)

// New connects to PostgreSQL and verifies the connection with a ping.
func New(ctx context.Context, connString string, maxConns int32, logger *zap.Logger) (*Adapter, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Adapter{
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}
