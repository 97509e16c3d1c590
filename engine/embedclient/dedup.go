package embedclient

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// embedder is the subset of enrich.Embedder this package depends on,
// declared locally to avoid importing engine/enrich.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Deduped wraps an embedder so concurrent calls for the same text within
// the pipeline's enrichment loop share one backend request instead of one
// per caller — the embedding similarity round can ask for the same node's
// text from multiple goroutines when several adapters feed the same
// ingest call.
type Deduped struct {
	inner embedder
	group singleflight.Group
}

// NewDeduped wraps inner.
func NewDeduped(inner embedder) *Deduped {
	return &Deduped{inner: inner}
}

// Embed satisfies enrich.Embedder.
func (d *Deduped) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err, _ := d.group.Do(text, func() (any, error) {
		return d.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}
