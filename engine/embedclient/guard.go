package embedclient

import (
	"context"

	"github.com/plexuslabs/plexus/pkg/resilience"
)

// Guarded wraps an embedder with a circuit breaker and rate limiter
// (section 5 "Shared resource policy"): the embedding backend is a single
// pooled handle shared by every concurrent ingest call's enrichment loop, so
// a failing backend must fail fast instead of stalling every caller behind
// it, and a bursty enrichment round must not hammer it past its own limits.
type Guarded struct {
	inner   embedder
	breaker *resilience.Breaker
	limiter *resilience.Limiter
}

// NewGuarded wraps inner with breaker and limiter. Either may be nil to
// skip that guard.
func NewGuarded(inner embedder, breaker *resilience.Breaker, limiter *resilience.Limiter) *Guarded {
	return &Guarded{inner: inner, breaker: breaker, limiter: limiter}
}

// Embed satisfies enrich.Embedder.
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	call := func(ctx context.Context) error {
		var err error
		out, err = g.inner.Embed(ctx, text)
		return err
	}

	guarded := call
	if g.breaker != nil {
		inner := guarded
		guarded = func(ctx context.Context) error { return g.breaker.Call(ctx, inner) }
	}
	if g.limiter != nil {
		inner := guarded
		guarded = func(ctx context.Context) error { return g.limiter.CallWait(ctx, inner) }
	}

	if err := guarded(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
