// Package adapter defines the Adapter contract (section 4.4) and the
// hand-coded built-in adapters for the core input_kind values, fragment
// and annotate. Declarative (YAML-specified) adapters live in
// engine/declarative and satisfy the same interface.
package adapter

import (
	"context"
	"encoding/json"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/sink"
)

// Input is the type-erased payload handed to an adapter: a context, a
// routing key, and opaque data the adapter downcasts itself.
type Input struct {
	ContextID string
	InputKind string
	Data      json.RawMessage
}

// OutboundEvent is a domain-meaningful event translated from the raw
// internal event stream for consumption by transports.
type OutboundEvent struct {
	Kind   string
	Detail string
}

// Adapter transforms a domain-specific payload into graph mutations via a
// Sink, and optionally translates the resulting internal events into
// OutboundEvents.
type Adapter interface {
	ID() string
	InputKind() string
	Process(ctx context.Context, input Input, sk *sink.Sink) (sink.EmitResult, error)
	TransformEvents(events []sink.Event, snap *graph.Snapshot) []OutboundEvent
}

// Base supplies the default TransformEvents (returns nil) so hand-coded
// adapters only need to implement Process, matching the documented default
// (section 4.4: "Default implementation returns empty").
type Base struct{}

func (Base) TransformEvents([]sink.Event, *graph.Snapshot) []OutboundEvent { return nil }
