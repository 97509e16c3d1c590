// Package ingest implements the single write entrypoint (section 4.7):
// resolve adapters for an input_kind, run their primary emissions, run the
// enrichment loop to quiescence, and translate the accumulated events into
// outbound events.
package ingest

import (
	"sync"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/engine/enrich"
)

// Registry holds the adapters (keyed by input_kind, in registration order)
// and enrichments (deduplicated by ID, section 4.7: "Enrichment
// deduplication") available to a Pipeline.
type Registry struct {
	mu              sync.RWMutex
	adaptersByKind  map[string][]adapter.Adapter
	enrichments     map[string]enrich.Enrichment
	enrichmentOrder []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		adaptersByKind: make(map[string][]adapter.Adapter),
		enrichments:    make(map[string]enrich.Enrichment),
	}
}

// RegisterAdapter adds a under its InputKind, preserving registration order
// for the adapter-order guarantee of section 5.
func (r *Registry) RegisterAdapter(a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adaptersByKind[a.InputKind()] = append(r.adaptersByKind[a.InputKind()], a)
}

// RegisterEnrichment adds e unless an enrichment with the same ID is
// already registered — adapter-enrichment bundles that share a built-in
// enrichment only run it once per round.
func (r *Registry) RegisterEnrichment(e enrich.Enrichment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.enrichments[e.ID()]; exists {
		return
	}
	r.enrichments[e.ID()] = e
	r.enrichmentOrder = append(r.enrichmentOrder, e.ID())
}

func (r *Registry) adaptersFor(kind string) []adapter.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapter.Adapter, len(r.adaptersByKind[kind]))
	copy(out, r.adaptersByKind[kind])
	return out
}

func (r *Registry) enrichmentsInOrder() []enrich.Enrichment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]enrich.Enrichment, 0, len(r.enrichmentOrder))
	for _, id := range r.enrichmentOrder {
		out = append(out, r.enrichments[id])
	}
	return out
}
