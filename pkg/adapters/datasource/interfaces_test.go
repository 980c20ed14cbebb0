package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
)

type stubDiscoverer struct {
	snapshot *schema.Snapshot
	calls    int
}

func (d *stubDiscoverer) Discover(_ context.Context) (*schema.Snapshot, error) {
	d.calls++
	return d.snapshot, nil
}

func (d *stubDiscoverer) Close() error { return nil }

func TestDiscovererProvider_Resolve(t *testing.T) {
	snapshot := schema.NewSnapshot([]schema.Table{{Name: "players"}})
	stub := &stubDiscoverer{snapshot: snapshot}
	provider := NewDiscovererProvider(stub)

	resolved, err := provider.Resolve(context.Background(), []string{"ignored"})
	require.NoError(t, err)
	assert.Same(t, snapshot, resolved)
	assert.Equal(t, 1, stub.calls)
}
