// Package enrich implements the self-reinforcing enrichment loop (section
// 4.6): pluggable Enrichment passes that run to quiescence after every
// ingest, discovering structure the originating adapter didn't. Each
// enrichment observes the prior round's events plus a read-only Snapshot and
// returns an Emission of its own, submitted through its own Sink scoped to
// the enrichment's ID — enrichments are first-class contributors, just like
// adapters.
package enrich

import (
	"context"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// Enrichment observes one round of events against a Snapshot and optionally
// returns an Emission. Returning a nil Emission (or one where IsEmpty is
// true) signals no work for this round — the loop relies on every
// registered enrichment going quiet in the same round to detect quiescence.
type Enrichment interface {
	ID() string
	Enrich(ctx context.Context, events []sink.Event, snap *graph.Snapshot) (*sink.Emission, error)
}

// collectNodeIDs gathers every node ID touched by a NodesAdded event in
// this round.
func collectNodeIDs(events []sink.Event) map[string]bool {
	ids := map[string]bool{}
	for _, ev := range events {
		if na, ok := ev.(sink.NodesAdded); ok {
			for _, id := range na.NodeIDs {
				ids[id] = true
			}
		}
	}
	return ids
}

// tagsOf reads a node's "tags" property as a string slice, tolerating the
// []any shape produced by JSON decoding.
func tagsOf(n graph.Node) []string {
	raw, ok := n.Properties["tags"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
