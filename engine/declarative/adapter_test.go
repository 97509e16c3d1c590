package declarative

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
	"github.com/stretchr/testify/require"
)

func TestDeclarativeAdapterProcessCommitsEmission(t *testing.T) {
	spec, err := Parse([]byte(validSpecYAML))
	require.NoError(t, err)
	a := New(spec, nil)

	g := graph.NewContext("c1")
	sk := sink.New(g, "c1", a.ID())

	payload, err := json.Marshal(map[string]any{
		"source": "journal/2026-02-13.md",
		"text":   "Walked through Avignon",
		"tags":   []string{"travel", "avignon"},
	})
	require.NoError(t, err)

	_, err = a.Process(context.Background(), adapter.Input{
		ContextID: "c1", InputKind: "note", Data: payload,
	}, sk)
	require.NoError(t, err)

	require.True(t, g.HasNode("concept:travel"))
	require.True(t, g.HasNode("concept:avignon"))
	require.True(t, g.HasNode("chain:note:journal/2026-02-13.md"))
}

func TestDeclarativeAdapterRequiresEnsembleWhenConfigured(t *testing.T) {
	spec, err := Parse([]byte(`
adapter_id: llm_note
input_kind: llm_note
ensemble: summarize
emit:
  - op: create_provenance
    chain_id: "chain:llm_note:{input.source}"
    mark_id: "mark:llm_note:{input.source}:0"
    annotation: "{ensemble.summary}"
`))
	require.NoError(t, err)
	a := New(spec, nil)

	g := graph.NewContext("c1")
	sk := sink.New(g, "c1", a.ID())
	payload, err := json.Marshal(map[string]any{"source": "x"})
	require.NoError(t, err)

	_, err = a.Process(context.Background(), adapter.Input{ContextID: "c1", InputKind: "llm_note", Data: payload}, sk)
	require.Error(t, err)
}
