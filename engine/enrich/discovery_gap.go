package enrich

import (
	"context"
	"math"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// noStructuralEdge excludes similar_to and discovery_gap themselves from
// the "is there already a structural edge" scan (section 4.6.4) —
// implementations must not widen this exclusion, or a later tagged_with
// edge would silently suppress a gap that was already real.
var noStructuralEdge = map[string]bool{"similar_to": true, "discovery_gap": true}

// DiscoveryGapEnrichment fires when EmbeddingSimilarityEnrichment links two
// nodes that have no other structural relationship yet: it emits a
// "discovery_gap" edge carrying the triggering similarity as its
// contribution, surfacing semantically close nodes nothing else connects.
type DiscoveryGapEnrichment struct{}

func (d *DiscoveryGapEnrichment) ID() string { return "enrich:discovery_gap" }

func (d *DiscoveryGapEnrichment) Enrich(_ context.Context, events []sink.Event, snap *graph.Snapshot) (*sink.Emission, error) {
	em := sink.NewEmission()

	for _, ev := range events {
		ea, ok := ev.(sink.EdgesAdded)
		if !ok {
			continue
		}
		for _, desc := range ea.Edges {
			if desc.Relationship != "similar_to" {
				continue
			}
			edge, ok := snap.Edge(graph.EdgeKey{Source: desc.Source, Target: desc.Target, Relationship: "similar_to"})
			if !ok {
				continue
			}
			sim, ok := edge.Contributions[ea.AdapterID]
			if !ok {
				continue
			}
			if len(snap.EdgesBetween(desc.Source, desc.Target, noStructuralEdge)) > 0 {
				continue
			}
			d.emitIfChanged(em, snap, desc.Source, desc.Target, desc.SourceDim, desc.TargetDim, sim)
		}
	}

	if em.IsEmpty() {
		return nil, nil
	}
	return em, nil
}

func (d *DiscoveryGapEnrichment) emitIfChanged(em *sink.Emission, snap *graph.Snapshot, a, b string, aDim, bDim graph.Dimension, sim float64) {
	key := graph.EdgeKey{Source: a, Target: b, Relationship: "discovery_gap"}
	if edge, ok := snap.Edge(key); ok {
		if v, ok2 := edge.Contributions[d.ID()]; ok2 && math.Abs(v-sim) < 1e-9 {
			return
		}
	}
	em.AddEdge(a, b, "discovery_gap", aDim, bDim, sim, nil)
}
