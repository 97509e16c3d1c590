// Package query implements the read-only facade of section 4.8: every
// operation reads a graph.Snapshot and never touches the write path. Reads
// are wait-free against writers to the same context (graph.Context.Snapshot
// takes its copy under the shard lock and releases immediately).
package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/plexerr"
	"github.com/plexuslabs/plexus/pkg/fn"
)

// Facade exposes the read surface over an Engine.
type Facade struct {
	engine *graph.Engine
}

// NewFacade wires a Facade to engine.
func NewFacade(engine *graph.Engine) *Facade {
	return &Facade{engine: engine}
}

func (f *Facade) snapshot(contextID string) (*graph.Snapshot, error) {
	snap, err := f.engine.Snapshot(contextID)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Predicate filters FindNodes results. Any field left at its zero value is
// not checked.
type Predicate struct {
	Type        string
	ContentType graph.ContentType
	Dimension   graph.Dimension
	PropertyKey string
	PropertyVal any
}

func (p Predicate) matches(n graph.Node) bool {
	if p.Type != "" && n.Type != p.Type {
		return false
	}
	if p.ContentType != "" && n.ContentType != p.ContentType {
		return false
	}
	if p.Dimension != "" && n.Dimension != p.Dimension {
		return false
	}
	if p.PropertyKey != "" {
		v, ok := n.Properties[p.PropertyKey]
		if !ok || v != p.PropertyVal {
			return false
		}
	}
	return true
}

// FindNodes returns every node in contextID matching pred.
func (f *Facade) FindNodes(contextID string, pred Predicate) ([]graph.Node, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return nil, err
	}
	return fn.Filter(snap.Nodes(), pred.matches), nil
}

// Direction constrains traversal to outgoing, incoming, or both.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Traverse performs a breadth-first walk from start up to depth hops,
// optionally filtered to a single relationship, returning every node
// reached (start excluded).
func (f *Facade) Traverse(contextID, start string, depth int, dir Direction, relationship string) ([]graph.Node, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return nil, err
	}
	if !snap.HasNode(start) {
		return nil, fmt.Errorf("%w: node %q", plexerr.ErrContextNotFound, start)
	}

	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []graph.Node

	for step := 0; step < depth && len(frontier) > 0; step++ {
		var next []string
		for _, id := range frontier {
			for _, neighbor := range neighborsOf(snap, id, dir, relationship) {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				next = append(next, neighbor)
				if n, ok := snap.Node(neighbor); ok {
					out = append(out, n)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

func neighborsOf(snap *graph.Snapshot, id string, dir Direction, relationship string) []string {
	var out []string
	if dir == DirectionOut || dir == DirectionBoth {
		for _, e := range snap.EdgesFrom(id, relationship) {
			out = append(out, e.Target)
		}
	}
	if dir == DirectionIn || dir == DirectionBoth {
		for _, e := range snap.EdgesTo(id, relationship) {
			out = append(out, e.Source)
		}
	}
	return out
}

// FindPath returns the shortest sequence of node IDs from `from` to `to`
// (inclusive), following edges in either direction, or nil if unreachable.
func (f *Facade) FindPath(contextID, from, to string) ([]string, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return nil, err
	}
	if from == to {
		return []string{from}, nil
	}

	prev := map[string]string{from: ""}
	frontier := []string{from}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, neighbor := range neighborsOf(snap, id, DirectionBoth, "") {
				if _, seen := prev[neighbor]; seen {
					continue
				}
				prev[neighbor] = id
				if neighbor == to {
					return reconstructPath(prev, to), nil
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return nil, nil
}

func reconstructPath(prev map[string]string, to string) []string {
	var path []string
	for cur := to; ; {
		path = append([]string{cur}, path...)
		parent, ok := prev[cur]
		if !ok || parent == "" {
			break
		}
		cur = parent
	}
	return path
}

// Step is one hop of a StepTraversal: follow `relationship` in `direction`,
// optionally constrained to nodes in `dimension`.
type Step struct {
	Direction    Direction
	Relationship string
	Dimension    graph.Dimension
}

// StepTraversal walks a fixed sequence of typed steps from start, returning
// the frontier reached after the final step.
func (f *Facade) StepTraversal(contextID, start string, steps []Step) ([]graph.Node, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return nil, err
	}
	frontier := []string{start}
	var reached []graph.Node

	for _, step := range steps {
		var next []string
		reached = nil
		for _, id := range frontier {
			for _, neighbor := range neighborsOf(snap, id, step.Direction, step.Relationship) {
				n, ok := snap.Node(neighbor)
				if !ok {
					continue
				}
				if step.Dimension != "" && n.Dimension != step.Dimension {
					continue
				}
				next = append(next, neighbor)
				reached = append(reached, n)
			}
		}
		frontier = next
	}
	return reached, nil
}

// EvidenceTrail is the typed result bundle of evidenceTrail: every mark,
// chain, and fragment supporting a concept node.
type EvidenceTrail struct {
	ConceptID string
	Marks     []graph.Node
	Chains    []graph.Node
	Fragments []graph.Node
}

// EvidenceTrail walks backward from a concept node through its provenance:
// incoming `references` edges to marks, then incoming `contains` edges to
// those marks' chains; and incoming `tagged_with` edges to fragments.
func (f *Facade) EvidenceTrail(contextID, conceptID string) (EvidenceTrail, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return EvidenceTrail{}, err
	}
	trail := EvidenceTrail{ConceptID: conceptID}

	for _, e := range snap.EdgesTo(conceptID, "references") {
		mark, ok := snap.Node(e.Source)
		if !ok {
			continue
		}
		trail.Marks = append(trail.Marks, mark)
		for _, ce := range snap.EdgesTo(mark.ID, "contains") {
			if chain, ok := snap.Node(ce.Source); ok {
				trail.Chains = append(trail.Chains, chain)
			}
		}
	}
	for _, e := range snap.EdgesTo(conceptID, "tagged_with") {
		if fragment, ok := snap.Node(e.Source); ok {
			trail.Fragments = append(trail.Fragments, fragment)
		}
	}
	return trail, nil
}

// ListChains returns every chain node, optionally filtered by its "status"
// property.
func (f *Facade) ListChains(contextID, status string) ([]graph.Node, error) {
	pred := Predicate{ContentType: graph.ContentChain}
	if status != "" {
		pred.PropertyKey, pred.PropertyVal = "status", status
	}
	return f.FindNodes(contextID, pred)
}

// GetChain returns the chain node with the given ID.
func (f *Facade) GetChain(contextID, id string) (graph.Node, bool, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return graph.Node{}, false, err
	}
	n, ok := snap.Node(id)
	return n, ok && n.ContentType == graph.ContentChain, nil
}

// ListMarks returns every mark node matching pred (ContentType is forced to
// Mark regardless of pred's value).
func (f *Facade) ListMarks(contextID string, pred Predicate) ([]graph.Node, error) {
	pred.ContentType = graph.ContentMark
	return f.FindNodes(contextID, pred)
}

// ListTags returns every concept node's normalized tag.
func (f *Facade) ListTags(contextID string) ([]string, error) {
	nodes, err := f.FindNodes(contextID, Predicate{ContentType: graph.ContentConcept})
	if err != nil {
		return nil, err
	}
	return fn.FilterMap(nodes, func(n graph.Node) (string, bool) {
		tag, ok := n.Properties["tag"].(string)
		return tag, ok
	}), nil
}

// GetLinks returns every edge incident to markID in either direction.
func (f *Facade) GetLinks(contextID, markID string) ([]graph.Edge, error) {
	snap, err := f.snapshot(contextID)
	if err != nil {
		return nil, err
	}
	links := snap.EdgesFrom(markID, "")
	links = append(links, snap.EdgesTo(markID, "")...)
	return links, nil
}

// SharedConcepts returns the semantic-dimension node IDs present in both
// ctxA and ctxB, reading both snapshots concurrently (section 4.8:
// "Enables cross-context awareness without breaking isolation").
func (f *Facade) SharedConcepts(ctx context.Context, ctxA, ctxB string) ([]string, error) {
	var snapA, snapB *graph.Snapshot
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		snap, err := f.snapshot(ctxA)
		if err != nil {
			return fmt.Errorf("shared_concepts: context %q: %w", ctxA, err)
		}
		snapA = snap
		return egCtx.Err()
	})
	eg.Go(func() error {
		snap, err := f.snapshot(ctxB)
		if err != nil {
			return fmt.Errorf("shared_concepts: context %q: %w", ctxB, err)
		}
		snapB = snap
		return egCtx.Err()
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	setA := map[string]bool{}
	for _, n := range snapA.Nodes() {
		if n.Dimension == graph.DimensionSemantic {
			setA[n.ID] = true
		}
	}
	var shared []string
	for _, n := range snapB.Nodes() {
		if n.Dimension == graph.DimensionSemantic && setA[n.ID] {
			shared = append(shared, n.ID)
		}
	}
	return shared, nil
}
