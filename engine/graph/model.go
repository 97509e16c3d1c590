// Package graph provides the in-memory knowledge graph data model: nodes,
// contribution-weighted edges, and the context partition that owns them.
// Persistence lives in engine/store; concurrency across contexts lives in
// the Engine type of this package.
package graph

// Dimension is one of the six named strata every node and edge declares.
type Dimension string

const (
	DimensionStructure  Dimension = "structure"
	DimensionSemantic   Dimension = "semantic"
	DimensionRelational Dimension = "relational"
	DimensionTemporal   Dimension = "temporal"
	DimensionProvenance Dimension = "provenance"
	DimensionDefault    Dimension = "default"
)

// ValidDimensions is the closed set context validation checks against.
var ValidDimensions = map[Dimension]bool{
	DimensionStructure:  true,
	DimensionSemantic:   true,
	DimensionRelational: true,
	DimensionTemporal:   true,
	DimensionProvenance: true,
	DimensionDefault:    true,
}

// ContentType is the closed set of content shapes a node may carry.
type ContentType string

const (
	ContentDocument ContentType = "Document"
	ContentConcept  ContentType = "Concept"
	ContentChain    ContentType = "Chain"
	ContentMark     ContentType = "Mark"
	ContentArtifact ContentType = "Artifact"
)

// Properties is the heterogeneous, JSON-shaped property map every node and
// edge carries: string/number/bool/list/nested values.
type Properties map[string]any

// Merge applies last-writer-wins semantics per key, mutating and returning
// the receiver (section 3: "re-emission with the same ID merges properties").
func (p Properties) Merge(other Properties) Properties {
	if p == nil {
		p = Properties{}
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Clone returns a shallow-safe copy suitable for a read-only snapshot.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Node is a uniquely identified, typed, dimensioned vertex.
type Node struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	ContentType ContentType `json:"content_type"`
	Dimension   Dimension   `json:"dimension"`
	Content     any         `json:"content,omitempty"`
	Properties  Properties  `json:"properties,omitempty"`
}

// Clone returns a deep-enough copy for a read-only snapshot.
func (n Node) Clone() Node {
	n.Properties = n.Properties.Clone()
	return n
}

// EdgeKey identifies a parallel-edge slot: distinct relationships between
// the same endpoints are distinct edges (section 3).
type EdgeKey struct {
	Source       string
	Target       string
	Relationship string
}

// Edge is a (possibly cross-dimensional) relationship with per-adapter
// evidence accounting. RawWeight is derived — see Context.RecomputeAdapter.
type Edge struct {
	Source        string             `json:"source"`
	Target        string             `json:"target"`
	Relationship  string             `json:"relationship"`
	SourceDim     Dimension          `json:"source_dimension"`
	TargetDim     Dimension          `json:"target_dimension"`
	Contributions map[string]float64 `json:"contributions"`
	RawWeight     float64            `json:"raw_weight"`
	Properties    Properties         `json:"properties,omitempty"`
}

// Key returns the EdgeKey identifying this edge's slot.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Relationship: e.Relationship}
}

// Clone returns a deep-enough copy for a read-only snapshot.
func (e Edge) Clone() Edge {
	e.Properties = e.Properties.Clone()
	contribs := make(map[string]float64, len(e.Contributions))
	for k, v := range e.Contributions {
		contribs[k] = v
	}
	e.Contributions = contribs
	return e
}

// EdgeDescriptor is the lightweight identity+dimension payload carried on
// events (section 4.3) — cheaper than shipping the full Edge.
type EdgeDescriptor struct {
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Relationship string    `json:"relationship"`
	SourceDim    Dimension `json:"source_dimension"`
	TargetDim    Dimension `json:"target_dimension"`
}

func descriptorOf(e Edge) EdgeDescriptor {
	return EdgeDescriptor{
		Source:       e.Source,
		Target:       e.Target,
		Relationship: e.Relationship,
		SourceDim:    e.SourceDim,
		TargetDim:    e.TargetDim,
	}
}
