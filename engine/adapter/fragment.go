package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/plexerr"
	"github.com/plexuslabs/plexus/engine/sink"
)

// FragmentAdapter implements input_kind "fragment" (section 6, scenario
// S1): a free-text fragment tagged with zero or more topics. Each fragment
// becomes a structure-dimension node, one tagged_with edge per tag to a
// concept node, and the mandatory provenance pair (chain + mark, linked by
// contains) satisfying the dual obligation.
type FragmentAdapter struct {
	Base
}

func (a *FragmentAdapter) ID() string        { return "fragment" }
func (a *FragmentAdapter) InputKind() string { return "fragment" }

func (a *FragmentAdapter) Process(_ context.Context, input Input, sk *sink.Sink) (sink.EmitResult, error) {
	var in FragmentInput
	if err := json.Unmarshal(input.Data, &in); err != nil {
		return sink.EmitResult{}, fmt.Errorf("%w: %s", plexerr.ErrInvalidInput, err)
	}
	if err := validateFragment(in); err != nil {
		return sink.EmitResult{}, err
	}

	source := in.Source
	if source == "" {
		source = deterministicSuffix(in.Text)
	}
	fragID := "fragment:" + deterministicSuffix(source, in.Text)
	chainID := graph.ChainID(a.ID(), source)
	markID := graph.MarkID(a.ID(), source, 0)

	em := sink.NewEmission().
		AddNode(graph.Node{
			ID: fragID, Type: "fragment", ContentType: graph.ContentDocument,
			Dimension: graph.DimensionStructure, Content: in.Text,
			Properties: graph.Properties{"tags": in.Tags, "source": source, "date": in.Date},
		}).
		AddNode(graph.Node{
			ID: chainID, Type: "chain", ContentType: graph.ContentChain,
			Dimension: graph.DimensionProvenance,
			Properties: graph.Properties{"status": "open", "source": source},
		}).
		AddNode(graph.Node{
			ID: markID, Type: "mark", ContentType: graph.ContentMark,
			Dimension: graph.DimensionProvenance,
			Properties: graph.Properties{"tags": in.Tags, "annotation": in.Text, "source": source},
		}).
		AddEdge(chainID, markID, "contains", graph.DimensionProvenance, graph.DimensionProvenance, 1.0, nil)

	for _, tag := range in.Tags {
		conceptID := graph.ConceptID(tag)
		em.AddNode(graph.Node{
			ID: conceptID, Type: "concept", ContentType: graph.ContentConcept,
			Dimension:  graph.DimensionSemantic,
			Properties: graph.Properties{"tag": graph.NormalizeTag(tag)},
		}).AddEdge(fragID, conceptID, "tagged_with", graph.DimensionStructure, graph.DimensionSemantic, 1.0, nil)
	}

	return sk.Emit(em)
}

func (a *FragmentAdapter) TransformEvents(events []sink.Event, _ *graph.Snapshot) []OutboundEvent {
	var tags []string
	for _, ev := range events {
		na, ok := ev.(sink.NodesAdded)
		if !ok || na.AdapterID != a.ID() {
			continue
		}
		for _, id := range na.NodeIDs {
			if t, ok := conceptTag(id); ok {
				tags = append(tags, t)
			}
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return []OutboundEvent{{Kind: "concepts_detected", Detail: joinDetail(tags)}}
}

func conceptTag(nodeID string) (string, bool) {
	const prefix = "concept:"
	if len(nodeID) <= len(prefix) || nodeID[:len(prefix)] != prefix {
		return "", false
	}
	return nodeID[len(prefix):], true
}

func joinDetail(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
