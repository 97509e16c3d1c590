package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/plexerr"
	"github.com/plexuslabs/plexus/engine/sink"
)

// AnnotateAdapter implements input_kind "annotate" (section 6, scenario
// S2): a provenance annotation attached to a named chain, optionally tied
// to a file/line. Like FragmentAdapter it satisfies the dual obligation —
// the annotation's mark links to concept nodes for each tag.
type AnnotateAdapter struct {
	Base
}

func (a *AnnotateAdapter) ID() string        { return "annotate" }
func (a *AnnotateAdapter) InputKind() string { return "annotate" }

func (a *AnnotateAdapter) Process(_ context.Context, input Input, sk *sink.Sink) (sink.EmitResult, error) {
	var in AnnotateInput
	if err := json.Unmarshal(input.Data, &in); err != nil {
		return sink.EmitResult{}, fmt.Errorf("%w: %s", plexerr.ErrInvalidInput, err)
	}
	if err := validateAnnotate(in); err != nil {
		return sink.EmitResult{}, err
	}

	chainID := graph.ChainID(a.ID(), in.ChainName)
	markSource := deterministicSuffix(in.ChainName, in.File, strconv.Itoa(in.Line), in.Annotation)
	markID := graph.MarkID(a.ID(), markSource, 0)

	em := sink.NewEmission().
		AddNode(graph.Node{
			ID: chainID, Type: "chain", ContentType: graph.ContentChain,
			Dimension:  graph.DimensionProvenance,
			Properties: graph.Properties{"status": "open", "chain_name": in.ChainName},
		}).
		AddNode(graph.Node{
			ID: markID, Type: "mark", ContentType: graph.ContentMark,
			Dimension: graph.DimensionProvenance,
			Properties: graph.Properties{
				"tags": in.Tags, "annotation": in.Annotation,
				"file": in.File, "line": in.Line,
			},
		}).
		AddEdge(chainID, markID, "contains", graph.DimensionProvenance, graph.DimensionProvenance, 1.0, nil)

	for _, tag := range in.Tags {
		conceptID := graph.ConceptID(tag)
		em.AddNode(graph.Node{
			ID: conceptID, Type: "concept", ContentType: graph.ContentConcept,
			Dimension:  graph.DimensionSemantic,
			Properties: graph.Properties{"tag": graph.NormalizeTag(tag)},
		})
	}

	return sk.Emit(em)
}

func (a *AnnotateAdapter) TransformEvents(events []sink.Event, snap *graph.Snapshot) []OutboundEvent {
	var bridged []string
	for _, ev := range events {
		ea, ok := ev.(sink.EdgesAdded)
		if !ok {
			continue
		}
		for _, desc := range ea.Edges {
			if desc.Relationship != "references" {
				continue
			}
			if tag, ok := conceptTag(desc.Target); ok {
				bridged = append(bridged, tag)
			}
		}
	}
	if len(bridged) == 0 {
		return nil
	}
	return []OutboundEvent{{Kind: "bridges_formed", Detail: joinDetail(bridged)}}
}
