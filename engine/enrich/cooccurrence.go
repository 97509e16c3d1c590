package enrich

import (
	"context"
	"fmt"
	"math"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// CoOccurrenceEnrichment links targets that share sources across a chosen
// relationship (section 4.6.2): build a reverse index of edge_relationship
// targets to their source sets, then for every pair of targets sharing at
// least one source, emit a symmetric output_relationship edge whose
// contribution is the shared-source count normalized by the round's maximum
// pairwise count (degenerate case of a single pair -> 1.0).
type CoOccurrenceEnrichment struct {
	EdgeRelationship   string
	OutputRelationship string
	ContributionCap    float64
}

// NewCoOccurrenceEnrichment applies the documented defaults for any field
// left zero: edge_relationship "tagged_with", output_relationship
// "may_be_related", contribution_cap 1.0.
func NewCoOccurrenceEnrichment(edgeRelationship, outputRelationship string, contributionCap float64) *CoOccurrenceEnrichment {
	if edgeRelationship == "" {
		edgeRelationship = "tagged_with"
	}
	if outputRelationship == "" {
		outputRelationship = "may_be_related"
	}
	if contributionCap == 0 {
		contributionCap = 1.0
	}
	return &CoOccurrenceEnrichment{
		EdgeRelationship:   edgeRelationship,
		OutputRelationship: outputRelationship,
		ContributionCap:    contributionCap,
	}
}

func (c *CoOccurrenceEnrichment) ID() string {
	return fmt.Sprintf("co_occurrence:%s->%s", c.EdgeRelationship, c.OutputRelationship)
}

func (c *CoOccurrenceEnrichment) Enrich(_ context.Context, _ []sink.Event, snap *graph.Snapshot) (*sink.Emission, error) {
	sources := map[string]map[string]bool{}
	dims := map[string]graph.Dimension{}
	for _, e := range snap.Edges() {
		if e.Relationship != c.EdgeRelationship {
			continue
		}
		if sources[e.Target] == nil {
			sources[e.Target] = map[string]bool{}
		}
		sources[e.Target][e.Source] = true
		dims[e.Target] = e.TargetDim
	}

	targets := make([]string, 0, len(sources))
	for t := range sources {
		targets = append(targets, t)
	}

	type pair struct {
		a, b  string
		count int
	}
	var pairs []pair
	maxCount := 0
	for i := 0; i < len(targets); i++ {
		for j := i + 1; j < len(targets); j++ {
			count := intersectionSize(sources[targets[i]], sources[targets[j]])
			if count == 0 {
				continue
			}
			pairs = append(pairs, pair{targets[i], targets[j], count})
			if count > maxCount {
				maxCount = count
			}
		}
	}

	em := sink.NewEmission()
	for _, p := range pairs {
		score := float64(p.count) / float64(maxCount)
		if score > c.ContributionCap {
			score = c.ContributionCap
		}
		c.emitIfChanged(em, snap, p.a, p.b, dims[p.a], dims[p.b], score)
		c.emitIfChanged(em, snap, p.b, p.a, dims[p.b], dims[p.a], score)
	}

	if em.IsEmpty() {
		return nil, nil
	}
	return em, nil
}

func (c *CoOccurrenceEnrichment) emitIfChanged(em *sink.Emission, snap *graph.Snapshot, a, b string, aDim, bDim graph.Dimension, score float64) {
	key := graph.EdgeKey{Source: a, Target: b, Relationship: c.OutputRelationship}
	if e, ok := snap.Edge(key); ok {
		if v, ok2 := e.Contributions[c.ID()]; ok2 && math.Abs(v-score) < 1e-9 {
			return
		}
	}
	em.AddEdge(a, b, c.OutputRelationship, aDim, bDim, score, nil)
}

func intersectionSize(a, b map[string]bool) int {
	count := 0
	for k := range a {
		if b[k] {
			count++
		}
	}
	return count
}
