package declarative

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// hashIDNamespace roots every hash_id primitive's UUIDv5-style derivation
// (section 4.5: "stable across sessions").
var hashIDNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("plexus.declarative"))

// Build executes spec.Emit against input, returning the accumulated
// Emission a hand-coded adapter's Process would have built directly.
func Build(spec *Spec, input map[string]any, adapterID, contextID string) (*sink.Emission, error) {
	tc := newTemplateContext(input, adapterID, contextID)
	em := sink.NewEmission()
	if err := execPrimitives(spec.Emit, tc, em); err != nil {
		return nil, fmt.Errorf("declarative adapter %q: %w", spec.AdapterID, err)
	}
	return em, nil
}

func execPrimitives(prims []Primitive, tc *templateContext, em *sink.Emission) error {
	for _, p := range prims {
		if err := execOne(p, tc, em); err != nil {
			return err
		}
	}
	return nil
}

func execOne(p Primitive, tc *templateContext, em *sink.Emission) error {
	switch p.Op {
	case OpCreateNode:
		return execCreateNode(p, tc, em)
	case OpCreateEdge:
		return execCreateEdge(p, tc, em)
	case OpForEach:
		return execForEach(p, tc, em)
	case OpIDTemplate:
		return execIDTemplate(p, tc)
	case OpHashID:
		return execHashID(p, tc)
	case OpCreateProvenance:
		return execCreateProvenance(p, tc, em)
	case OpUpdateProperties:
		return execUpdateProperties(p, tc, em)
	default:
		return fmt.Errorf("declarative: unhandled primitive op %q", p.Op)
	}
}

func execCreateNode(p Primitive, tc *templateContext, em *sink.Emission) error {
	id, err := tc.resolve(p.ID)
	if err != nil {
		return err
	}
	props, err := resolveProperties(p.Properties, tc)
	if err != nil {
		return err
	}
	em.AddNode(graph.Node{
		ID:          id,
		Type:        p.Type,
		ContentType: graph.ContentType(p.ContentType),
		Dimension:   graph.Dimension(p.Dimension),
		Properties:  props,
	})
	return nil
}

func execCreateEdge(p Primitive, tc *templateContext, em *sink.Emission) error {
	source, err := tc.resolve(p.Source)
	if err != nil {
		return err
	}
	target, err := tc.resolve(p.Target)
	if err != nil {
		return err
	}
	props, err := resolveProperties(p.Properties, tc)
	if err != nil {
		return err
	}
	sourceDim := dimensionOf(em, source)
	targetDim := dimensionOf(em, target)
	em.AddEdge(source, target, p.Relationship, sourceDim, targetDim, p.Contribution, props)
	return nil
}

// dimensionOf looks up a node's declared dimension among the nodes this
// spec has already queued in em, falling back to the default dimension
// when the edge references a node created by an earlier primary emission
// (e.g. a concept node from a prior ingest).
func dimensionOf(em *sink.Emission, nodeID string) graph.Dimension {
	for _, an := range em.AnnotatedNodes {
		if an.Node.ID == nodeID {
			return an.Node.Dimension
		}
	}
	return graph.DimensionDefault
}

func execForEach(p Primitive, tc *templateContext, em *sink.Emission) error {
	items, err := tc.lookup(strings.Trim(p.Over, "{}"))
	if err != nil {
		return err
	}
	for _, item := range toAnySlice(items) {
		childTC := tc.withLoop(p.As, item)
		if err := execPrimitives(p.Do, childTC, em); err != nil {
			return err
		}
	}
	return nil
}

func toAnySlice(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func execIDTemplate(p Primitive, tc *templateContext) error {
	val, err := tc.resolve(p.ID)
	if err != nil {
		return err
	}
	tc.bindings[p.As] = val
	return nil
}

func execHashID(p Primitive, tc *templateContext) error {
	var joined string
	for i, in := range p.Inputs {
		resolved, err := tc.resolve(in)
		if err != nil {
			return err
		}
		if i > 0 {
			joined += "\x00"
		}
		joined += resolved
	}
	tc.bindings[p.As] = uuid.NewSHA1(hashIDNamespace, []byte(joined)).String()
	return nil
}

func execCreateProvenance(p Primitive, tc *templateContext, em *sink.Emission) error {
	chainID, err := tc.resolve(p.ChainID)
	if err != nil {
		return err
	}
	markID, err := tc.resolve(p.MarkID)
	if err != nil {
		return err
	}
	annotation, err := tc.resolve(p.AnnotationText)
	if err != nil {
		return err
	}
	props, err := resolveProperties(p.Properties, tc)
	if err != nil {
		return err
	}
	if props == nil {
		props = graph.Properties{}
	}
	props["annotation"] = annotation

	em.AddNode(graph.Node{
		ID: chainID, Type: "chain", ContentType: graph.ContentChain,
		Dimension: graph.DimensionProvenance,
	}).AddNode(graph.Node{
		ID: markID, Type: "mark", ContentType: graph.ContentMark,
		Dimension: graph.DimensionProvenance, Properties: props,
	}).AddEdge(chainID, markID, "contains", graph.DimensionProvenance, graph.DimensionProvenance, 1.0, nil)
	return nil
}

func execUpdateProperties(p Primitive, tc *templateContext, em *sink.Emission) error {
	targetID, err := tc.resolve(p.TargetNode)
	if err != nil {
		return err
	}
	props, err := resolveProperties(p.Properties, tc)
	if err != nil {
		return err
	}
	em.AddNode(graph.Node{ID: targetID, Properties: props})
	return nil
}

func resolveProperties(raw map[string]any, tc *templateContext) (graph.Properties, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(graph.Properties, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		resolved, err := tc.resolve(s)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}
