package enrich

import (
	"context"
	"testing"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryGapEmitsWhenNoStructuralEdgeExists(t *testing.T) {
	g := graph.NewContext("c1")
	s := sink.New(g, "c1", "embedding:fake-v1")
	_, err := s.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Dimension: graph.DimensionSemantic}).
		AddNode(graph.Node{ID: "b", Dimension: graph.DimensionSemantic}).
		AddEdge("a", "b", "similar_to", graph.DimensionSemantic, graph.DimensionSemantic, 0.82, nil))
	require.NoError(t, err)

	events := []sink.Event{sink.EdgesAdded{
		AdapterID: "embedding:fake-v1",
		Edges: []graph.EdgeDescriptor{
			{Source: "a", Target: "b", Relationship: "similar_to", SourceDim: graph.DimensionSemantic, TargetDim: graph.DimensionSemantic},
		},
	}}

	d := &DiscoveryGapEnrichment{}
	em, err := d.Enrich(context.Background(), events, g.Snapshot())
	require.NoError(t, err)
	require.NotNil(t, em)

	_, err = sink.New(g, "c1", d.ID()).Emit(em)
	require.NoError(t, err)

	edge, ok := g.GetEdge(graph.EdgeKey{Source: "a", Target: "b", Relationship: "discovery_gap"})
	require.True(t, ok)
	require.InDelta(t, 0.82, edge.Contributions[d.ID()], 1e-9)
}

func TestDiscoveryGapSkipsWhenStructuralEdgeAlreadyExists(t *testing.T) {
	g := graph.NewContext("c1")
	s := sink.New(g, "c1", "embedding:fake-v1")
	_, err := s.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Dimension: graph.DimensionSemantic}).
		AddNode(graph.Node{ID: "b", Dimension: graph.DimensionSemantic}).
		AddEdge("a", "b", "similar_to", graph.DimensionSemantic, graph.DimensionSemantic, 0.82, nil))
	require.NoError(t, err)

	other := sink.New(g, "c1", "fragment")
	_, err = other.Emit(sink.NewEmission().
		AddEdge("a", "b", "tagged_with", graph.DimensionSemantic, graph.DimensionSemantic, 1.0, nil))
	require.NoError(t, err)

	events := []sink.Event{sink.EdgesAdded{
		AdapterID: "embedding:fake-v1",
		Edges: []graph.EdgeDescriptor{
			{Source: "a", Target: "b", Relationship: "similar_to", SourceDim: graph.DimensionSemantic, TargetDim: graph.DimensionSemantic},
		},
	}}

	d := &DiscoveryGapEnrichment{}
	em, err := d.Enrich(context.Background(), events, g.Snapshot())
	require.NoError(t, err)
	require.Nil(t, em)
}

func TestDiscoveryGapSurvivesLaterStructuralEdgeOnceEmitted(t *testing.T) {
	g := graph.NewContext("c1")
	s := sink.New(g, "c1", "embedding:fake-v1")
	_, err := s.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Dimension: graph.DimensionSemantic}).
		AddNode(graph.Node{ID: "b", Dimension: graph.DimensionSemantic}).
		AddEdge("a", "b", "similar_to", graph.DimensionSemantic, graph.DimensionSemantic, 0.82, nil))
	require.NoError(t, err)

	events := []sink.Event{sink.EdgesAdded{
		AdapterID: "embedding:fake-v1",
		Edges: []graph.EdgeDescriptor{
			{Source: "a", Target: "b", Relationship: "similar_to", SourceDim: graph.DimensionSemantic, TargetDim: graph.DimensionSemantic},
		},
	}}
	d := &DiscoveryGapEnrichment{}
	em, err := d.Enrich(context.Background(), events, g.Snapshot())
	require.NoError(t, err)
	_, err = sink.New(g, "c1", d.ID()).Emit(em)
	require.NoError(t, err)

	other := sink.New(g, "c1", "fragment")
	_, err = other.Emit(sink.NewEmission().
		AddEdge("a", "b", "tagged_with", graph.DimensionSemantic, graph.DimensionSemantic, 1.0, nil))
	require.NoError(t, err)

	_, ok := g.GetEdge(graph.EdgeKey{Source: "a", Target: "b", Relationship: "discovery_gap"})
	require.True(t, ok)
}
