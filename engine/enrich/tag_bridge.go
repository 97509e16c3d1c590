package enrich

import (
	"context"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// TagConceptBridger links marks to concept nodes by tag, in both
// directions (section 4.6.1): a new mark scans for existing concepts
// matching its tags, and a new concept scans existing marks for matching
// tags. Either direction emits a "references" edge (mark -> concept) when
// one isn't already present.
type TagConceptBridger struct{}

func (b *TagConceptBridger) ID() string { return "bridge:tag_concept" }

func (b *TagConceptBridger) Enrich(_ context.Context, events []sink.Event, snap *graph.Snapshot) (*sink.Emission, error) {
	em := sink.NewEmission()

	for id := range collectNodeIDs(events) {
		n, ok := snap.Node(id)
		if !ok {
			continue
		}
		switch n.Type {
		case "mark":
			for _, tag := range tagsOf(n) {
				conceptID := graph.ConceptID(tag)
				if !snap.HasNode(conceptID) {
					continue
				}
				b.linkIfMissing(em, snap, n.ID, conceptID)
			}
		case "concept":
			tag := graph.NormalizeTag(n.ID[len("concept:"):])
			for _, m := range snap.Nodes() {
				if m.Type != "mark" {
					continue
				}
				for _, t := range tagsOf(m) {
					if graph.NormalizeTag(t) == tag {
						b.linkIfMissing(em, snap, m.ID, n.ID)
					}
				}
			}
		}
	}

	if em.IsEmpty() {
		return nil, nil
	}
	return em, nil
}

func (b *TagConceptBridger) linkIfMissing(em *sink.Emission, snap *graph.Snapshot, markID, conceptID string) {
	key := graph.EdgeKey{Source: markID, Target: conceptID, Relationship: "references"}
	if _, ok := snap.Edge(key); ok {
		return
	}
	em.AddEdge(markID, conceptID, "references", graph.DimensionProvenance, graph.DimensionSemantic, 1.0, nil)
}
