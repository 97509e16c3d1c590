package store

import (
	"context"
	"testing"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadContextRoundTrips(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	g := graph.NewContext("c1")
	sk := sink.New(g, "c1", "fragment")
	_, err = sk.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Type: "fragment", Dimension: graph.DimensionStructure, Content: "hello"}).
		AddNode(graph.Node{ID: "concept:travel", Type: "concept", Dimension: graph.DimensionSemantic}).
		AddEdge("a", "concept:travel", "tagged_with", graph.DimensionStructure, graph.DimensionSemantic, 1.0, nil))
	require.NoError(t, err)

	require.NoError(t, s.SaveContext(ctx, g))

	loaded, err := s.LoadContext(ctx, "c1")
	require.NoError(t, err)
	require.True(t, loaded.HasNode("a"))
	require.True(t, loaded.HasNode("concept:travel"))

	e, ok := loaded.GetEdge(graph.EdgeKey{Source: "a", Target: "concept:travel", Relationship: "tagged_with"})
	require.True(t, ok)
	require.InDelta(t, 1.0, e.RawWeight, 1e-9)
	require.InDelta(t, 1.0, e.Contributions["fragment"], 1e-9)
}

func TestListDeleteRenameContexts(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	g := graph.NewContext("c1")
	require.NoError(t, s.SaveContext(ctx, g))

	ids, err := s.ListContexts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, ids)

	require.NoError(t, s.RenameContext(ctx, "c1", "c2"))
	ids, err = s.ListContexts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, ids)

	require.NoError(t, s.DeleteContext(ctx, "c2"))
	ids, err = s.ListContexts(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestLoadContextRestoresRawWeightAfterFurtherContribution(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	g := graph.NewContext("c1")
	sk := sink.New(g, "c1", "fragment")
	_, err = sk.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "a", Dimension: graph.DimensionStructure}).
		AddNode(graph.Node{ID: "b", Dimension: graph.DimensionSemantic}).
		AddEdge("a", "b", "tagged_with", graph.DimensionStructure, graph.DimensionSemantic, 1.0, nil))
	require.NoError(t, err)
	require.NoError(t, s.SaveContext(ctx, g))

	loaded, err := s.LoadContext(ctx, "c1")
	require.NoError(t, err)

	sk2 := sink.New(loaded, "c1", "fragment")
	_, err = sk2.Emit(sink.NewEmission().
		AddNode(graph.Node{ID: "c", Dimension: graph.DimensionSemantic}).
		AddEdge("a", "c", "tagged_with", graph.DimensionStructure, graph.DimensionSemantic, 2.0, nil))
	require.NoError(t, err)

	e, ok := loaded.GetEdge(graph.EdgeKey{Source: "a", Target: "b", Relationship: "tagged_with"})
	require.True(t, ok)
	require.Less(t, e.RawWeight, 1.0)
}
