package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingProvider struct {
	calls    int
	snapshot *Snapshot
	err      error
}

func (p *countingProvider) Resolve(_ context.Context, _ []string) (*Snapshot, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.snapshot, nil
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(testSnapshot())
	s, err := p.Resolve(context.Background(), []string{"players"})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if s.Table("players") == nil {
		t.Error("snapshot not served")
	}

	empty := NewStaticProvider(nil)
	if _, err := empty.Resolve(context.Background(), nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestCachingProvider_Memoizes(t *testing.T) {
	upstream := &countingProvider{snapshot: testSnapshot()}
	p := NewCachingProvider(upstream, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := p.Resolve(context.Background(), nil); err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
	}
	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls)
	}
}

func TestCachingProvider_ServesStaleOnFailure(t *testing.T) {
	upstream := &countingProvider{snapshot: testSnapshot()}
	p := NewCachingProvider(upstream, time.Nanosecond, zap.NewNop())

	if _, err := p.Resolve(context.Background(), nil); err != nil {
		t.Fatalf("first Resolve() failed: %v", err)
	}

	upstream.err = errors.New("catalog unreachable")
	time.Sleep(time.Millisecond)

	s, err := p.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected stale snapshot, got error: %v", err)
	}
	if s.Table("players") == nil {
		t.Error("stale snapshot not served")
	}
}

func TestCachingProvider_FailsWithoutCache(t *testing.T) {
	upstream := &countingProvider{err: errors.New("catalog unreachable")}
	p := NewCachingProvider(upstream, time.Minute, zap.NewNop())

	if _, err := p.Resolve(context.Background(), nil); err == nil {
		t.Error("expected error when upstream fails with empty cache")
	}
}
