package enrich

import (
	"context"
	"math"
	"sync"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// Embedder turns text into a vector for similarity scoring. Implementations
// live in engine/embedclient; this interface is declared here so enrich
// doesn't import a client package whose job is purely I/O.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingSimilarityEnrichment embeds newly added semantic-dimension nodes
// and links pairs whose cosine similarity clears Threshold with a
// "similar_to" edge in both directions (section 4.6.3). Embeddings are
// cached per node ID for the lifetime of the enrichment instance — text for
// an existing node never changes without a new node ID, so the cache never
// needs invalidation.
type EmbeddingSimilarityEnrichment struct {
	Embedder  Embedder
	Model     string
	Threshold float64

	mu    sync.Mutex
	cache map[string][]float32
}

// NewEmbeddingSimilarityEnrichment applies the documented default threshold
// (0.75) when threshold is zero.
func NewEmbeddingSimilarityEnrichment(embedder Embedder, model string, threshold float64) *EmbeddingSimilarityEnrichment {
	if threshold == 0 {
		threshold = 0.75
	}
	return &EmbeddingSimilarityEnrichment{
		Embedder:  embedder,
		Model:     model,
		Threshold: threshold,
		cache:     map[string][]float32{},
	}
}

func (e *EmbeddingSimilarityEnrichment) ID() string { return "embedding:" + e.Model }

func (e *EmbeddingSimilarityEnrichment) Enrich(ctx context.Context, events []sink.Event, snap *graph.Snapshot) (*sink.Emission, error) {
	added := collectNodeIDs(events)
	if len(added) == 0 {
		return nil, nil
	}

	for id := range added {
		n, ok := snap.Node(id)
		if !ok || n.Dimension != graph.DimensionSemantic {
			continue
		}
		text := textOf(n)
		if text == "" {
			continue
		}
		if err := e.ensureEmbedded(ctx, n.ID, text); err != nil {
			return nil, err
		}
	}

	em := sink.NewEmission()
	e.mu.Lock()
	ids := make([]string, 0, len(e.cache))
	for id := range e.cache {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for id := range added {
		if _, ok := e.cache[id]; !ok {
			continue
		}
		nodeA, ok := snap.Node(id)
		if !ok {
			continue
		}
		for _, other := range ids {
			if other == id {
				continue
			}
			nodeB, ok := snap.Node(other)
			if !ok {
				continue
			}
			sim := cosineSimilarity(e.cache[id], e.cache[other])
			if sim < e.Threshold {
				continue
			}
			e.emitIfChanged(em, snap, id, other, nodeA.Dimension, nodeB.Dimension, sim)
			e.emitIfChanged(em, snap, other, id, nodeB.Dimension, nodeA.Dimension, sim)
		}
	}

	if em.IsEmpty() {
		return nil, nil
	}
	return em, nil
}

func (e *EmbeddingSimilarityEnrichment) ensureEmbedded(ctx context.Context, id, text string) error {
	e.mu.Lock()
	_, ok := e.cache[id]
	e.mu.Unlock()
	if ok {
		return nil
	}
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cache[id] = vec
	e.mu.Unlock()
	return nil
}

func (e *EmbeddingSimilarityEnrichment) emitIfChanged(em *sink.Emission, snap *graph.Snapshot, a, b string, aDim, bDim graph.Dimension, sim float64) {
	key := graph.EdgeKey{Source: a, Target: b, Relationship: "similar_to"}
	if edge, ok := snap.Edge(key); ok {
		if v, ok2 := edge.Contributions[e.ID()]; ok2 && math.Abs(v-sim) < 1e-9 {
			return
		}
	}
	em.AddEdge(a, b, "similar_to", aDim, bDim, sim, nil)
}

func textOf(n graph.Node) string {
	if s, ok := n.Content.(string); ok {
		return s
	}
	if s, ok := n.Properties["text"].(string); ok {
		return s
	}
	return ""
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
