package graph

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrEndpointMissing is returned by UpsertEdgeSlot when either endpoint of
// the edge is absent from the context at validation time (section 4.1).
var ErrEndpointMissing = errors.New("graph: edge endpoint missing in context")

// ErrInvalidDimension is returned when a node or edge declares a dimension
// outside the closed set of section 3.
var ErrInvalidDimension = errors.New("graph: dimension not in closed set")

const weightEpsilon = 1e-9

// Context is a named, in-memory partition holding a set of nodes and a
// multimap of edges keyed by (source, target, relationship). All edges are
// intra-context (section 3). Context is safe for concurrent use, though the
// Engine normally serializes writers per context and lets Context's lock
// simply guard against direct concurrent use in tests or standalone code.
type Context struct {
	mu    sync.RWMutex
	id    string
	nodes map[string]Node
	edges map[EdgeKey]Edge

	// adapterEdges indexes, for each adapter, the set of edge keys
	// currently bearing that adapter's contribution slot. Used to bound
	// recomputation to O(edges-with-that-adapter) per section 4.1.
	adapterEdges map[string]map[EdgeKey]struct{}
	ranges       map[string]adapterRange

	// Floor is the alpha coefficient for scale normalization (default 0.01).
	Floor float64
}

// NewContext creates an empty, named context.
func NewContext(id string) *Context {
	return &Context{
		id:           id,
		nodes:        make(map[string]Node),
		edges:        make(map[EdgeKey]Edge),
		adapterEdges: make(map[string]map[EdgeKey]struct{}),
		ranges:       make(map[string]adapterRange),
		Floor:        DefaultFloor,
	}
}

// ID returns the context's name.
func (c *Context) ID() string { return c.id }

// UpsertNode creates or merges a node. Re-emission with the same ID merges
// properties with last-writer-wins per key (section 3). Returns the stored
// node and whether it was newly created.
func (c *Context) UpsertNode(n Node) (Node, bool, error) {
	if n.Dimension != "" && !ValidDimensions[n.Dimension] {
		return Node{}, false, fmt.Errorf("%w: %q", ErrInvalidDimension, n.Dimension)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.nodes[n.ID]
	if !ok {
		if n.Properties == nil {
			n.Properties = Properties{}
		}
		c.nodes[n.ID] = n
		return n, true, nil
	}

	merged := existing
	if n.Type != "" {
		merged.Type = n.Type
	}
	if n.ContentType != "" {
		merged.ContentType = n.ContentType
	}
	if n.Dimension != "" {
		merged.Dimension = n.Dimension
	}
	if n.Content != nil {
		merged.Content = n.Content
	}
	merged.Properties = existing.Properties.Clone().Merge(n.Properties)
	c.nodes[n.ID] = merged
	return merged, false, nil
}

// GetNode returns a copy of the node with the given ID.
func (c *Context) GetNode(id string) (Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[id]
	return n.Clone(), ok
}

// HasNode reports whether a node with the given ID exists.
func (c *Context) HasNode(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.nodes[id]
	return ok
}

// UpsertEdgeSlot validates endpoints, upserts the edge, and replaces the
// named adapter's contribution slot. It does not recompute raw weights —
// callers batch one or more slot mutations for the same adapter and then
// call RecomputeAdapter once, matching the commit order of section 4.3.
func (c *Context) UpsertEdgeSlot(key EdgeKey, sourceDim, targetDim Dimension, props Properties, adapterID string, value float64) error {
	if sourceDim != "" && !ValidDimensions[sourceDim] {
		return fmt.Errorf("%w: %q", ErrInvalidDimension, sourceDim)
	}
	if targetDim != "" && !ValidDimensions[targetDim] {
		return fmt.Errorf("%w: %q", ErrInvalidDimension, targetDim)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("graph: contribution value must be finite, got %v", value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes[key.Source]; !ok {
		return fmt.Errorf("%w: source %q", ErrEndpointMissing, key.Source)
	}
	if _, ok := c.nodes[key.Target]; !ok {
		return fmt.Errorf("%w: target %q", ErrEndpointMissing, key.Target)
	}

	e, ok := c.edges[key]
	if !ok {
		e = Edge{
			Source:        key.Source,
			Target:        key.Target,
			Relationship:  key.Relationship,
			SourceDim:     sourceDim,
			TargetDim:     targetDim,
			Contributions: make(map[string]float64),
			Properties:    Properties{},
		}
	}
	if sourceDim != "" {
		e.SourceDim = sourceDim
	}
	if targetDim != "" {
		e.TargetDim = targetDim
	}
	if props != nil {
		e.Properties = e.Properties.Clone().Merge(props)
	}
	e.Contributions[adapterID] = value
	c.edges[key] = e

	if c.adapterEdges[adapterID] == nil {
		c.adapterEdges[adapterID] = make(map[EdgeKey]struct{})
	}
	c.adapterEdges[adapterID][key] = struct{}{}

	return nil
}

// RemoveEdge deletes the edge at key outright, regardless of contributions.
// Used for explicit edge_removals (section 4.3).
func (c *Context) RemoveEdge(key EdgeKey) (Edge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeEdgeLocked(key)
}

func (c *Context) removeEdgeLocked(key EdgeKey) (Edge, bool) {
	e, ok := c.edges[key]
	if !ok {
		return Edge{}, false
	}
	delete(c.edges, key)
	for adapterID := range e.Contributions {
		delete(c.adapterEdges[adapterID], key)
	}
	return e.Clone(), true
}

// RemoveNode deletes a node and cascades to every incident edge (section
// 4.1: "cascades: remove incident edges"). Returns the removed edges.
func (c *Context) RemoveNode(id string) ([]Edge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes[id]; !ok {
		return nil, false
	}
	delete(c.nodes, id)

	var removed []Edge
	for key := range c.edges {
		if key.Source == id || key.Target == id {
			if e, ok := c.removeEdgeLocked(key); ok {
				removed = append(removed, e)
			}
		}
	}
	return removed, true
}

// RecomputeAdapter recomputes the scale-normalization range for adapterID
// from its currently-bound edges, then recomputes the raw weight of every
// one of those edges. It returns the edges whose raw weight actually
// changed, for WeightsChanged event construction.
func (c *Context) RecomputeAdapter(adapterID string) []Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recomputeAdapterLocked(adapterID)
}

func (c *Context) recomputeAdapterLocked(adapterID string) []Edge {
	keys := c.adapterEdges[adapterID]
	if len(keys) == 0 {
		delete(c.ranges, adapterID)
		return nil
	}

	var r adapterRange
	for key := range keys {
		e := c.edges[key]
		if v, ok := e.Contributions[adapterID]; ok {
			r.observe(v)
		}
	}
	c.ranges[adapterID] = r

	var changed []Edge
	for key := range keys {
		e := c.edges[key]
		newWeight := c.rawWeightLocked(e)
		if math.Abs(newWeight-e.RawWeight) > weightEpsilon {
			e.RawWeight = newWeight
			c.edges[key] = e
			changed = append(changed, e.Clone())
		}
	}
	return changed
}

func (c *Context) rawWeightLocked(e Edge) float64 {
	var sum float64
	for adapterID, v := range e.Contributions {
		r := c.ranges[adapterID]
		sum += normalize(v, r, c.floorOrDefault())
	}
	return sum
}

func (c *Context) floorOrDefault() float64 {
	if c.Floor == 0 {
		return DefaultFloor
	}
	return c.Floor
}

// RetractContributions removes adapterID's slot from every edge it bears,
// drops edges whose contribution map becomes empty, and recomputes raw
// weights for the rest. Returns the edges removed outright (reason:
// explicit) and the edges whose weight changed but survived.
func (c *Context) RetractContributions(adapterID string) (removed []Edge, changed []Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.adapterEdges[adapterID]
	if len(keys) == 0 {
		return nil, nil
	}
	touched := make([]EdgeKey, 0, len(keys))
	for key := range keys {
		touched = append(touched, key)
	}

	for _, key := range touched {
		e := c.edges[key]
		delete(e.Contributions, adapterID)
		if len(e.Contributions) == 0 {
			if rm, ok := c.removeEdgeLocked(key); ok {
				removed = append(removed, rm)
			}
			continue
		}
		c.edges[key] = e
	}
	delete(c.adapterEdges, adapterID)
	delete(c.ranges, adapterID)

	// Other adapters that still share a surviving edge need their own
	// ranges recomputed only if their own value set changed — it didn't,
	// so we only need to refresh raw weights of surviving edges using the
	// already-current ranges of their remaining adapters.
	seen := make(map[EdgeKey]bool)
	for _, key := range touched {
		if seen[key] {
			continue
		}
		seen[key] = true
		e, ok := c.edges[key]
		if !ok {
			continue
		}
		newWeight := c.rawWeightLocked(e)
		if math.Abs(newWeight-e.RawWeight) > weightEpsilon {
			e.RawWeight = newWeight
			c.edges[key] = e
			changed = append(changed, e.Clone())
		}
	}
	return removed, changed
}

// RestoreSnapshot populates a freshly created Context from persisted nodes
// and edges, rebuilding the adapter index and per-adapter ranges without
// replaying upsert validation or recomputing raw weights (the persisted
// weights are trusted as-is). Used by engine/store when loading a context
// back from disk.
func (c *Context) RestoreSnapshot(nodes []Node, edges []Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range nodes {
		c.nodes[n.ID] = n
	}
	for _, e := range edges {
		key := e.Key()
		c.edges[key] = e
		for adapterID := range e.Contributions {
			if c.adapterEdges[adapterID] == nil {
				c.adapterEdges[adapterID] = make(map[EdgeKey]struct{})
			}
			c.adapterEdges[adapterID][key] = struct{}{}
		}
	}
	for adapterID := range c.adapterEdges {
		c.recomputeRangeOnlyLocked(adapterID)
	}
}

func (c *Context) recomputeRangeOnlyLocked(adapterID string) {
	var r adapterRange
	for key := range c.adapterEdges[adapterID] {
		e := c.edges[key]
		if v, ok := e.Contributions[adapterID]; ok {
			r.observe(v)
		}
	}
	c.ranges[adapterID] = r
}

// GetEdge returns a copy of the edge at key.
func (c *Context) GetEdge(key EdgeKey) (Edge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.edges[key]
	if !ok {
		return Edge{}, false
	}
	return e.Clone(), true
}

// EdgesBetween returns every edge (any relationship) between the two
// endpoints, in either direction, excluding the relationships in exclude.
func (c *Context) EdgesBetween(a, b string, exclude map[string]bool) []Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Edge
	for key, e := range c.edges {
		if exclude[key.Relationship] {
			continue
		}
		if (key.Source == a && key.Target == b) || (key.Source == b && key.Target == a) {
			out = append(out, e.Clone())
		}
	}
	return out
}
