package enrich

import (
	"context"
	"testing"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func TestEmbeddingSimilarityLinksNodesAboveThreshold(t *testing.T) {
	g := graph.NewContext("c1")
	s := sink.New(g, "c1", "fragment")
	_, err := s.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Dimension: graph.DimensionSemantic, Content: "alpha"}).
		AddNode(graph.Node{ID: "b", Dimension: graph.DimensionSemantic, Content: "beta"}))
	require.NoError(t, err)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0.9, 0.1},
	}}
	e := NewEmbeddingSimilarityEnrichment(embedder, "fake-v1", 0.5)

	events := []sink.Event{sink.NodesAdded{NodeIDs: []string{"a", "b"}}}
	em, err := e.Enrich(context.Background(), events, g.Snapshot())
	require.NoError(t, err)
	require.NotNil(t, em)

	_, err = sink.New(g, "c1", e.ID()).Emit(em)
	require.NoError(t, err)

	edge, ok := g.GetEdge(graph.EdgeKey{Source: "a", Target: "b", Relationship: "similar_to"})
	require.True(t, ok)
	require.Greater(t, edge.Contributions[e.ID()], 0.9)
}

func TestEmbeddingSimilarityBelowThresholdEmitsNothing(t *testing.T) {
	g := graph.NewContext("c1")
	s := sink.New(g, "c1", "fragment")
	_, err := s.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Dimension: graph.DimensionSemantic, Content: "alpha"}).
		AddNode(graph.Node{ID: "b", Dimension: graph.DimensionSemantic, Content: "unrelated"}))
	require.NoError(t, err)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"alpha":     {1, 0},
		"unrelated": {0, 1},
	}}
	e := NewEmbeddingSimilarityEnrichment(embedder, "fake-v1", 0.5)

	events := []sink.Event{sink.NodesAdded{NodeIDs: []string{"a", "b"}}}
	em, err := e.Enrich(context.Background(), events, g.Snapshot())
	require.NoError(t, err)
	require.Nil(t, em)
}
