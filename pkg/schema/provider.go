package schema

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/apperrors"
)

// MetadataProvider resolves the schema snapshot a validation request needs.
// Implementations may hit a live catalog, so calls carry a context and can
// fail; callers treat a failure as the affected stages being indeterminate,
// not as a pipeline error.
type MetadataProvider interface {
	Resolve(ctx context.Context, tables []string) (*Snapshot, error)
}

// StaticProvider serves a fixed snapshot, typically loaded from a YAML
// document at startup. It never fails.
type StaticProvider struct {
	snapshot *Snapshot
}

// NewStaticProvider wraps a fixed snapshot.
func NewStaticProvider(snapshot *Snapshot) *StaticProvider {
	return &StaticProvider{snapshot: snapshot}
}

// Resolve returns the fixed snapshot regardless of the requested tables.
func (p *StaticProvider) Resolve(_ context.Context, _ []string) (*Snapshot, error) {
	if p.snapshot == nil {
		return nil, apperrors.ErrSnapshotUnavailable
	}
	return p.snapshot, nil
}

var _ MetadataProvider = (*StaticProvider)(nil)

// CachingProvider memoizes snapshots from a slower upstream provider
// (typically a live catalog query) for a TTL. Schema changes mid-flight are
// tolerated: a request sees one consistent snapshot throughout.
type CachingProvider struct {
	upstream MetadataProvider
	ttl      time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time
}

// NewCachingProvider wraps upstream with TTL-based memoization.
func NewCachingProvider(upstream MetadataProvider, ttl time.Duration, logger *zap.Logger) *CachingProvider {
	return &CachingProvider{
		upstream: upstream,
		ttl:      ttl,
		logger:   logger,
	}
}

// Resolve returns the cached snapshot when fresh, otherwise refreshes from
// upstream. A failed refresh falls back to a stale snapshot when one exists.
func (p *CachingProvider) Resolve(ctx context.Context, tables []string) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.cachedAt) < p.ttl {
		return p.cached, nil
	}

	snapshot, err := p.upstream.Resolve(ctx, tables)
	if err != nil {
		if p.cached != nil {
			p.logger.Warn("schema refresh failed, serving stale snapshot",
				zap.Duration("age", time.Since(p.cachedAt)),
				zap.Error(err))
			return p.cached, nil
		}
		return nil, err
	}

	p.cached = snapshot
	p.cachedAt = time.Now()
	return snapshot, nil
}

var _ MetadataProvider = (*CachingProvider)(nil)
