// Package datasource defines the ports the validation pipeline uses to talk
// to a live database: planning-only query previews and schema discovery.
// Driver-specific implementations live in the subpackages.
package datasource

import (
	"context"
	"time"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
)

// PreviewResult carries what the engine learned from a planning-only
// execution. No rows are fetched; the numbers are optimizer estimates.
type PreviewResult struct {
	// Plan is the rendered execution plan, format depends on the driver.
	Plan string `json:"plan,omitempty"`

	// EstimatedRows is the optimizer's row estimate for the whole statement.
	EstimatedRows int64 `json:"estimated_rows"`

	// EstimatedCost is the optimizer's cost estimate in driver-specific units.
	EstimatedCost float64 `json:"estimated_cost"`

	// Warnings lists non-fatal observations made while planning.
	Warnings []string `json:"warnings,omitempty"`

	// Elapsed is the wall time spent obtaining the plan.
	Elapsed time.Duration `json:"-"`
}

// PreviewExecutor plans a statement against the target database without
// executing it. Implementations must never run the statement for real.
type PreviewExecutor interface {
	Preview(ctx context.Context, sqlText string) (*PreviewResult, error)
	Close() error
}

// SchemaDiscoverer reads the live catalog of the target database.
type SchemaDiscoverer interface {
	Discover(ctx context.Context) (*schema.Snapshot, error)
	Close() error
}

// DiscovererProvider adapts a live SchemaDiscoverer to the metadata provider
// the orchestrator consumes. Discovery always returns the full catalog; the
// requested table list is only a hint and is ignored here.
type DiscovererProvider struct {
	discoverer SchemaDiscoverer
}

// NewDiscovererProvider wraps a discoverer as a metadata provider.
func NewDiscovererProvider(d SchemaDiscoverer) *DiscovererProvider {
	return &DiscovererProvider{discoverer: d}
}

var _ schema.MetadataProvider = (*DiscovererProvider)(nil)

// Resolve loads the current catalog from the live database.
func (p *DiscovererProvider) Resolve(ctx context.Context, _ []string) (*schema.Snapshot, error) {
	return p.discoverer.Discover(ctx)
}
