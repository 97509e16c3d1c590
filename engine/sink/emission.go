// Package sink implements the single write path into a graph.Context: an
// ordered Emission is validated, committed, and translated into events
// (section 4.3). Sink does not persist — the engine does, after the
// enclosing write-lock closure exits.
package sink

import "github.com/plexuslabs/plexus/engine/graph"

// Annotation is optional per-item provenance an adapter may attach to a
// node or edge it emits: confidence, extraction method, source location.
type Annotation struct {
	Confidence     float64
	Method         string
	SourceLocation string
}

// AnnotatedNode pairs a node with its optional annotation.
type AnnotatedNode struct {
	Node       graph.Node
	Annotation *Annotation
}

// AnnotatedEdge pairs an edge's identity and contributor value with its
// optional annotation. Value is this adapter's contribution to the edge's
// contribution map (section 3).
type AnnotatedEdge struct {
	Source       string
	Target       string
	Relationship string
	SourceDim    graph.Dimension
	TargetDim    graph.Dimension
	Value        float64
	Properties   graph.Properties
	Annotation   *Annotation
}

// EdgeRef identifies an edge by its key fields, used for edge_removals.
type EdgeRef struct {
	Source       string
	Target       string
	Relationship string
}

// Emission is the atomic bundle of node/edge additions, removals, and
// contribution retractions submitted through Sink.Emit (section 4.3).
type Emission struct {
	AnnotatedNodes           []AnnotatedNode
	AnnotatedEdges           []AnnotatedEdge
	NodeRemovals             []string
	EdgeRemovals             []EdgeRef
	ContributionRetractions  []string
}

// NewEmission returns an empty Emission ready for incremental building.
func NewEmission() *Emission {
	return &Emission{}
}

// AddNode appends a node with no annotation.
func (e *Emission) AddNode(n graph.Node) *Emission {
	e.AnnotatedNodes = append(e.AnnotatedNodes, AnnotatedNode{Node: n})
	return e
}

// AddAnnotatedNode appends a node together with its annotation.
func (e *Emission) AddAnnotatedNode(n graph.Node, a Annotation) *Emission {
	e.AnnotatedNodes = append(e.AnnotatedNodes, AnnotatedNode{Node: n, Annotation: &a})
	return e
}

// AddEdge appends an edge contribution with no annotation.
func (e *Emission) AddEdge(source, target, relationship string, sourceDim, targetDim graph.Dimension, value float64, props graph.Properties) *Emission {
	e.AnnotatedEdges = append(e.AnnotatedEdges, AnnotatedEdge{
		Source: source, Target: target, Relationship: relationship,
		SourceDim: sourceDim, TargetDim: targetDim, Value: value, Properties: props,
	})
	return e
}

// RemoveEdge appends an explicit edge removal.
func (e *Emission) RemoveEdge(source, target, relationship string) *Emission {
	e.EdgeRemovals = append(e.EdgeRemovals, EdgeRef{Source: source, Target: target, Relationship: relationship})
	return e
}

// RemoveNode appends a node removal.
func (e *Emission) RemoveNode(id string) *Emission {
	e.NodeRemovals = append(e.NodeRemovals, id)
	return e
}

// RetractContributions appends an adapter whose contribution slots should
// be dropped from every edge in the context.
func (e *Emission) RetractContributions(adapterID string) *Emission {
	e.ContributionRetractions = append(e.ContributionRetractions, adapterID)
	return e
}

// IsEmpty reports whether the emission carries no mutations at all — used
// by the enrichment loop to detect quiescence (section 4.6).
func (e *Emission) IsEmpty() bool {
	if e == nil {
		return true
	}
	return len(e.AnnotatedNodes) == 0 &&
		len(e.AnnotatedEdges) == 0 &&
		len(e.NodeRemovals) == 0 &&
		len(e.EdgeRemovals) == 0 &&
		len(e.ContributionRetractions) == 0
}

// Merge appends other's contents onto e and returns e. The enrichment
// loop does not use it: each enrichment's emission goes through its own
// sink.
func (e *Emission) Merge(other *Emission) *Emission {
	if other == nil {
		return e
	}
	e.AnnotatedNodes = append(e.AnnotatedNodes, other.AnnotatedNodes...)
	e.AnnotatedEdges = append(e.AnnotatedEdges, other.AnnotatedEdges...)
	e.NodeRemovals = append(e.NodeRemovals, other.NodeRemovals...)
	e.EdgeRemovals = append(e.EdgeRemovals, other.EdgeRemovals...)
	e.ContributionRetractions = append(e.ContributionRetractions, other.ContributionRetractions...)
	return e
}
