package sink

import "github.com/plexuslabs/plexus/engine/graph"

// Reason distinguishes why an edge was removed.
type Reason string

const (
	ReasonCascade  Reason = "cascade"
	ReasonExplicit Reason = "explicit"
)

// Event is the common interface satisfied by every typed event in the
// union ordering of section 4.3.
type Event interface {
	Kind() string
}

// NodesAdded fires once per Emit call that upserted at least one node.
type NodesAdded struct {
	AdapterID string
	NodeIDs   []string
}

func (NodesAdded) Kind() string { return "NodesAdded" }

// EdgesAdded fires once per Emit call that committed at least one edge.
type EdgesAdded struct {
	AdapterID string
	Edges     []graph.EdgeDescriptor
}

func (EdgesAdded) Kind() string { return "EdgesAdded" }

// WeightsChanged fires for every edge whose raw weight changed as a result
// of this emission's contribution changes.
type WeightsChanged struct {
	Edges []graph.EdgeDescriptor
}

func (WeightsChanged) Kind() string { return "WeightsChanged" }

// EdgesRemoved fires for edges dropped by explicit removal, cascade from a
// node removal, or contribution retraction emptying the last slot.
type EdgesRemoved struct {
	Edges  []graph.EdgeDescriptor
	Reason Reason
}

func (EdgesRemoved) Kind() string { return "EdgesRemoved" }

// NodesRemoved fires for explicit node removals.
type NodesRemoved struct {
	NodeIDs []string
}

func (NodesRemoved) Kind() string { return "NodesRemoved" }

// Rejection records a non-fatal EdgeRejected condition (section 7): an
// annotated edge whose endpoints were missing and not part of the same
// bundle. The rest of the emission still commits.
type Rejection struct {
	Source       string
	Target       string
	Relationship string
	Reason       string
}
