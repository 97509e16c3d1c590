package sink

import (
	"time"

	"github.com/plexuslabs/plexus/engine/graph"
)

// frameworkKey is the property-map key under which the sink records its
// always-on provenance entry (adapter_id, timestamp, context_id). This is
// metadata carried on the node/edge property map — distinct from
// provenance-dimension nodes adapters explicitly produce (section 4.3).
const frameworkKey = "_plexus_framework"

// frameworkEntry is the shape stored under frameworkKey.
type frameworkEntry struct {
	AdapterID string    `json:"adapter_id"`
	Timestamp time.Time `json:"timestamp"`
	ContextID string    `json:"context_id"`
}

// EmitResult bundles the events this Emit call produced plus any non-fatal
// edge rejections.
type EmitResult struct {
	Events     []Event
	Rejections []Rejection
}

// Sink is scoped to a (context, adapter_id) pair (section 4.3). Its only
// public operation is Emit. It never persists — the engine does, after the
// enclosing write-lock closure exits (section 4.2).
type Sink struct {
	ctx       *graph.Context
	contextID string
	adapterID string
	now       func() time.Time
}

// New creates a Sink scoped to ctx for the given adapter.
func New(ctx *graph.Context, contextID, adapterID string) *Sink {
	return &Sink{ctx: ctx, contextID: contextID, adapterID: adapterID, now: time.Now}
}

// Emit commits an Emission against the scoped context following the
// processing order of section 4.3:
//  1. upsert nodes
//  2. upsert edges (validating endpoints; rejecting individually on failure)
//  3. explicit edge removals
//  4. node removals (cascading)
//  5. contribution retractions
//  6. recompute affected raw weights
func (s *Sink) Emit(e *Emission) (EmitResult, error) {
	var result EmitResult
	ts := s.now()

	// 1. Upsert nodes.
	var nodeIDs []string
	for _, an := range e.AnnotatedNodes {
		n := an.Node
		n.Properties = n.Properties.Clone()
		if n.Properties == nil {
			n.Properties = graph.Properties{}
		}
		n.Properties[frameworkKey] = frameworkEntry{AdapterID: s.adapterID, Timestamp: ts, ContextID: s.contextID}
		if _, _, err := s.ctx.UpsertNode(n); err != nil {
			return result, err
		}
		nodeIDs = append(nodeIDs, n.ID)
	}
	if len(nodeIDs) > 0 {
		result.Events = append(result.Events, NodesAdded{AdapterID: s.adapterID, NodeIDs: nodeIDs})
	}

	// 2. Upsert edges, rejecting individually on missing endpoints.
	var edgeDescs []graph.EdgeDescriptor
	for _, ae := range e.AnnotatedEdges {
		props := ae.Properties.Clone()
		if props == nil {
			props = graph.Properties{}
		}
		props[frameworkKey] = frameworkEntry{AdapterID: s.adapterID, Timestamp: ts, ContextID: s.contextID}

		key := graph.EdgeKey{Source: ae.Source, Target: ae.Target, Relationship: ae.Relationship}
		err := s.ctx.UpsertEdgeSlot(key, ae.SourceDim, ae.TargetDim, props, s.adapterID, ae.Value)
		if err != nil {
			result.Rejections = append(result.Rejections, Rejection{
				Source: ae.Source, Target: ae.Target, Relationship: ae.Relationship,
				Reason: err.Error(),
			})
			continue
		}
		edgeDescs = append(edgeDescs, graph.EdgeDescriptor{
			Source: ae.Source, Target: ae.Target, Relationship: ae.Relationship,
			SourceDim: ae.SourceDim, TargetDim: ae.TargetDim,
		})
	}
	if len(edgeDescs) > 0 {
		result.Events = append(result.Events, EdgesAdded{AdapterID: s.adapterID, Edges: edgeDescs})
	}

	// 3. Explicit edge removals.
	var explicitRemoved []graph.EdgeDescriptor
	for _, ref := range e.EdgeRemovals {
		key := graph.EdgeKey{Source: ref.Source, Target: ref.Target, Relationship: ref.Relationship}
		if removed, ok := s.ctx.RemoveEdge(key); ok {
			explicitRemoved = append(explicitRemoved, descriptorOf(removed))
		}
	}
	if len(explicitRemoved) > 0 {
		result.Events = append(result.Events, EdgesRemoved{Edges: explicitRemoved, Reason: ReasonExplicit})
	}

	// 4. Node removals (cascading).
	var removedNodeIDs []string
	var cascadeRemoved []graph.EdgeDescriptor
	for _, id := range e.NodeRemovals {
		cascaded, existed := s.ctx.RemoveNode(id)
		if !existed {
			continue
		}
		removedNodeIDs = append(removedNodeIDs, id)
		for _, edge := range cascaded {
			cascadeRemoved = append(cascadeRemoved, descriptorOf(edge))
		}
	}
	if len(cascadeRemoved) > 0 {
		result.Events = append(result.Events, EdgesRemoved{Edges: cascadeRemoved, Reason: ReasonCascade})
	}
	if len(removedNodeIDs) > 0 {
		result.Events = append(result.Events, NodesRemoved{NodeIDs: removedNodeIDs})
	}

	// 5. Contribution retractions.
	changedByKey := map[graph.EdgeKey]graph.Edge{}
	var retractRemoved []graph.EdgeDescriptor
	for _, adapterID := range e.ContributionRetractions {
		removed, changed := s.ctx.RetractContributions(adapterID)
		for _, edge := range removed {
			retractRemoved = append(retractRemoved, descriptorOf(edge))
		}
		for _, edge := range changed {
			changedByKey[edge.Key()] = edge
		}
	}
	if len(retractRemoved) > 0 {
		result.Events = append(result.Events, EdgesRemoved{Edges: retractRemoved, Reason: ReasonExplicit})
	}

	// 6. Recompute affected raw weights for this sink's own adapter.
	for _, edge := range s.ctx.RecomputeAdapter(s.adapterID) {
		changedByKey[edge.Key()] = edge
	}
	if len(changedByKey) > 0 {
		descs := make([]graph.EdgeDescriptor, 0, len(changedByKey))
		for _, edge := range changedByKey {
			descs = append(descs, descriptorOf(edge))
		}
		result.Events = append(result.Events, WeightsChanged{Edges: descs})
	}

	return result, nil
}

func descriptorOf(e graph.Edge) graph.EdgeDescriptor {
	return graph.EdgeDescriptor{
		Source: e.Source, Target: e.Target, Relationship: e.Relationship,
		SourceDim: e.SourceDim, TargetDim: e.TargetDim,
	}
}
