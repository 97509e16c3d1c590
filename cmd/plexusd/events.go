package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/pkg/natsutil"
)

// eventPublisher fans an ingest call's outbound events out over NATS
// (section 6's ingest surface returns them synchronously in the HTTP
// response; this gives external consumers — notification services, a UI
// event feed — a push-based copy without polling). A zero-value publisher
// (nil conn) makes Publish a no-op, matching the rest of plexusd's
// treatment of NATS as optional infrastructure.
type eventPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// outboundEventSubject namespaces published events per context so a
// consumer can subscribe to one context's stream without seeing another's.
func outboundEventSubject(contextID string) string {
	return fmt.Sprintf("plexus.events.%s", contextID)
}

// Publish sends each outbound event produced by an ingest call. Trace
// context from ctx is propagated into the NATS message headers by
// natsutil.Publish. Publish failures are logged, not returned — event
// fan-out is a side channel, not part of ingest's success contract. The
// first failed publish stops the loop; the remaining events are not sent.
func (p eventPublisher) Publish(ctx context.Context, contextID string, events []adapter.OutboundEvent) {
	if p.conn == nil {
		return
	}
	subject := outboundEventSubject(contextID)
	for _, e := range events {
		if err := natsutil.Publish(ctx, p.conn, subject, e); err != nil {
			p.logger.Warn("event publish failed", "context_id", contextID, "subject", subject, "err", err)
			return
		}
	}
}
