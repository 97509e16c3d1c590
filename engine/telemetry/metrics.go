// Package telemetry provides the OpenTelemetry metrics instrumentation
// named in section 5's resource-model requirements: ingest duration,
// enrichment round count, edge rejection count, and raw-weight recompute
// count. A Prometheus exporter bridge lets these be scraped over HTTP
// without a separate collector.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/plexuslabs/plexus"

var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds every OpenTelemetry instrument plexusd records against.
type Metrics struct {
	// IngestDuration tracks the wall-clock time of one Pipeline.Ingest call,
	// tagged with input_kind and outcome ("ok", "cancelled", "error").
	IngestDuration metric.Float64Histogram

	// EnrichmentRounds counts rounds run by the enrichment loop per ingest
	// call, tagged with context_id.
	EnrichmentRounds metric.Int64Counter

	// EdgesRejected counts edges skipped by Sink.Emit because an endpoint
	// was missing from the context after the emission's nodes were applied
	// (or the edge was otherwise invalid), tagged with relationship.
	EdgesRejected metric.Int64Counter

	// WeightRecomputes counts raw_weight recompute passes: the enrichment
	// loop adds one for each enrichment emission that produced events
	// (each Sink.Emit recomputes the emitting adapter's edges once), not
	// one per edge. Tagged with the contributing enrichment's ID.
	WeightRecomputes metric.Int64Counter

	// HTTPRequestDuration is a histogram for plexusd HTTP request latency
	// by method and path. It is registered here; no code in this module
	// records to it.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates every instrument against mp. Returns an error if any
// instrument registration fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.IngestDuration, err = m.Float64Histogram("plexus.ingest.duration",
		metric.WithDescription("Latency of one ingest pipeline call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentRounds, err = m.Int64Counter("plexus.enrichment.rounds",
		metric.WithDescription("Enrichment loop rounds run per ingest call."),
	); err != nil {
		return nil, err
	}
	if met.EdgesRejected, err = m.Int64Counter("plexus.edges.rejected",
		metric.WithDescription("Edges rejected for missing endpoints, by relationship."),
	); err != nil {
		return nil, err
	}
	if met.WeightRecomputes, err = m.Int64Counter("plexus.edges.weight_recomputes",
		metric.WithDescription("Edge raw_weight recomputations, by contributing enrichment."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("plexus.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordIngest records one completed ingest call's duration and outcome.
func (m *Metrics) RecordIngest(ctx context.Context, inputKind, outcome string, seconds float64) {
	m.IngestDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("input_kind", inputKind),
		attribute.String("outcome", outcome),
	))
}

// RecordEnrichmentRounds records how many rounds one ingest call's
// enrichment loop ran.
func (m *Metrics) RecordEnrichmentRounds(ctx context.Context, contextID string, rounds int64) {
	m.EnrichmentRounds.Add(ctx, rounds, metric.WithAttributes(
		attribute.String("context_id", contextID),
	))
}

// RecordEdgeRejected records one edge rejection.
func (m *Metrics) RecordEdgeRejected(ctx context.Context, relationship string) {
	m.EdgesRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("relationship", relationship),
	))
}

// RecordWeightRecompute records one raw_weight recompute pass attributed to
// enrichmentID.
func (m *Metrics) RecordWeightRecompute(ctx context.Context, enrichmentID string) {
	m.WeightRecomputes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("enrichment_id", enrichmentID),
	))
}
