package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/plexerr"
	"github.com/plexuslabs/plexus/engine/sink"
	"github.com/plexuslabs/plexus/engine/telemetry"
)

// defaultMaxRounds bounds the enrichment loop (section 4.6) against a
// pathological enrichment set that never reaches quiescence.
const defaultMaxRounds = 32

// IngestResult is everything an Ingest call reports back to the caller:
// the outbound events translated from the run's accumulated internal
// events, any non-fatal edge rejections, and whether the run was cut short
// by context cancellation.
type IngestResult struct {
	OutboundEvents []adapter.OutboundEvent
	Rejections     []sink.Rejection
	Cancelled      bool
}

// Pipeline is the single write entrypoint described in section 4.7: it
// resolves adapters for an input_kind, runs their primary emissions, drives
// the enrichment loop to quiescence, and persists the result through the
// engine's write-lock closure.
type Pipeline struct {
	engine    *graph.Engine
	registry  *Registry
	logger    *slog.Logger
	MaxRounds int

	// Metrics is optional: a nil Metrics simply skips recording, so callers
	// that don't wire telemetry (tests, standalone tools) pay nothing for it.
	Metrics *telemetry.Metrics
}

// NewPipeline wires a Pipeline to engine and registry. A nil logger falls
// back to slog.Default(), matching the teacher's nil-logger convention.
func NewPipeline(engine *graph.Engine, registry *Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{engine: engine, registry: registry, logger: logger}
}

// WithMetrics attaches metrics to an already-constructed Pipeline and returns
// it, so callers can write NewPipeline(...).WithMetrics(m) inline.
func (p *Pipeline) WithMetrics(metrics *telemetry.Metrics) *Pipeline {
	p.Metrics = metrics
	return p
}

func (p *Pipeline) maxRounds() int {
	if p.MaxRounds > 0 {
		return p.MaxRounds
	}
	return defaultMaxRounds
}

// Ingest routes payload to every adapter registered for inputKind, runs the
// enrichment loop over the resulting events, and persists the context.
//
// Cancellation (section 5): if ctx is already done before any primary
// emission runs, no state changes — the write closure returns an error and
// the engine skips the persist. If ctx is cancelled after at least one
// primary emission has committed in memory, the loop (primary or
// enrichment) stops early, but the committed emissions are kept and
// persisted.
func (p *Pipeline) Ingest(ctx context.Context, contextID, inputKind string, payload json.RawMessage) (IngestResult, error) {
	adapters := p.registry.adaptersFor(inputKind)
	if len(adapters) == 0 {
		return IngestResult{}, fmt.Errorf("%w: %q", plexerr.ErrNoAdapter, inputKind)
	}

	var result IngestResult
	err := p.engine.WithContextMut(ctx, contextID, func(g *graph.Context) error {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", plexerr.ErrCancelled, ctx.Err())
		}

		input := adapter.Input{ContextID: contextID, InputKind: inputKind, Data: payload}
		allEvents := p.runAdapters(ctx, g, contextID, adapters, input, &result)
		p.runEnrichmentLoop(ctx, g, contextID, &allEvents, &result)

		finalSnap := g.Snapshot()
		for _, a := range adapters {
			result.OutboundEvents = append(result.OutboundEvents, a.TransformEvents(allEvents, finalSnap)...)
		}
		for _, r := range result.Rejections {
			result.OutboundEvents = append(result.OutboundEvents, adapter.OutboundEvent{
				Kind:   "ingest_warning",
				Detail: fmt.Sprintf("%s %s->%s: %s", r.Relationship, r.Source, r.Target, r.Reason),
			})
		}
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

// runAdapters runs every adapter registered for this input_kind in
// registration order. One adapter's failure is recorded as a non-fatal
// ingest_error outbound event and does not prevent the rest from running
// (section 4.7: "partial failure isolation").
func (p *Pipeline) runAdapters(ctx context.Context, g *graph.Context, contextID string, adapters []adapter.Adapter, input adapter.Input, result *IngestResult) []sink.Event {
	var allEvents []sink.Event
	for _, a := range adapters {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		sk := sink.New(g, contextID, a.ID())
		er, procErr := a.Process(ctx, input, sk)
		allEvents = append(allEvents, er.Events...)
		result.Rejections = append(result.Rejections, er.Rejections...)
		if procErr != nil {
			p.logger.Warn("ingest.adapter_failed", "adapter", a.ID(), "error", procErr)
			result.OutboundEvents = append(result.OutboundEvents, adapter.OutboundEvent{
				Kind: "ingest_error", Detail: fmt.Sprintf("%s: %s", a.ID(), procErr),
			})
		}
	}
	return allEvents
}

// runEnrichmentLoop drives every registered enrichment, round by round,
// until a round produces no new events (quiescence) or the safety cap is
// reached (section 4.6). Each enrichment submits through its own Sink,
// scoped to its own ID, so its contribution lands in its own slot on the
// contribution map — a round-wide shared sink would collapse every
// enrichment's evidence into one adapter_id and break per-enrichment
// idempotency checks.
func (p *Pipeline) runEnrichmentLoop(ctx context.Context, g *graph.Context, contextID string, allEvents *[]sink.Event, result *IngestResult) {
	if result.Cancelled {
		return
	}
	roundEvents := *allEvents
	failed := make(map[string]bool)
	rounds := 0

	for round := 0; round < p.maxRounds(); round++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			p.recordRounds(ctx, contextID, rounds)
			return
		}

		snap := g.Snapshot()
		var newEvents []sink.Event
		anyWork := false

		for _, e := range p.registry.enrichmentsInOrder() {
			if failed[e.ID()] {
				continue
			}
			em, enrichErr := e.Enrich(ctx, roundEvents, snap)
			if enrichErr != nil {
				failed[e.ID()] = true
				p.logger.Warn("ingest.enrichment_failed", "enrichment", e.ID(), "error", enrichErr)
				continue
			}
			if em.IsEmpty() {
				continue
			}
			sk := sink.New(g, contextID, e.ID())
			er, emitErr := sk.Emit(em)
			if emitErr != nil {
				failed[e.ID()] = true
				p.logger.Warn("ingest.enrichment_emit_failed", "enrichment", e.ID(), "error", emitErr)
				continue
			}
			result.Rejections = append(result.Rejections, er.Rejections...)
			if len(er.Events) > 0 {
				anyWork = true
				newEvents = append(newEvents, er.Events...)
				p.recordWeightRecompute(ctx, e.ID())
			}
		}

		*allEvents = append(*allEvents, newEvents...)
		rounds++
		if !anyWork {
			p.recordRounds(ctx, contextID, rounds)
			return
		}
		roundEvents = newEvents

		if round == p.maxRounds()-1 {
			p.logger.Warn("ingest.enrichment_safety_cap", "context_id", contextID, "rounds", p.maxRounds())
			result.OutboundEvents = append(result.OutboundEvents, adapter.OutboundEvent{
				Kind: "enrichment_cap_reached", Detail: fmt.Sprintf("%d", p.maxRounds()),
			})
			p.recordRounds(ctx, contextID, rounds)
		}
	}
}

func (p *Pipeline) recordRounds(ctx context.Context, contextID string, rounds int) {
	if p.Metrics != nil {
		p.Metrics.RecordEnrichmentRounds(ctx, contextID, int64(rounds))
	}
}

func (p *Pipeline) recordWeightRecompute(ctx context.Context, enrichmentID string) {
	if p.Metrics != nil {
		p.Metrics.RecordWeightRecompute(ctx, enrichmentID)
	}
}
