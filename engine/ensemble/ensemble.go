// Package ensemble dispatches a declarative adapter's `ensemble` field
// (section 4.5) to an external LLM pipeline over NATS request-reply.
//
// This deliberately does not reuse pkg/natsutil.Request: that helper
// calls nc.RequestMsg with the package-level nats.DefaultTimeout
// constant, ignoring whatever deadline the caller's context carries.
// Ensembles need a per-call, per-adapter configurable timeout (section
// 5), so Invoke talks to *nats.Conn directly via RequestMsgWithContext,
// which does respect ctx's deadline and cancellation.
package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/plexuslabs/plexus/pkg/resilience"
)

// subjectPrefix namespaces ensemble subjects so they don't collide with
// other NATS traffic on a shared connection.
const subjectPrefix = "plexus.ensemble."

// request is the payload wire shape sent to an ensemble responder.
type request struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

// response is the payload wire shape an ensemble responder returns.
type response struct {
	Result map[string]any `json:"result"`
}

// NATSEnsemble implements declarative.Ensemble by issuing a NATS request
// to "plexus.ensemble.<name>" and waiting for a JSON response.
type NATSEnsemble struct {
	conn    *nats.Conn
	timeout time.Duration

	// breaker and limiter guard the shared NATS handle (section 5 "Shared
	// resource policy"): a tripped breaker fails fast instead of piling up
	// timed-out requests against a dead responder, and the limiter caps how
	// often this process hammers it. Both are optional — nil skips the
	// corresponding guard.
	breaker *resilience.Breaker
	limiter *resilience.Limiter
}

// New wires a NATSEnsemble to conn. A zero timeout adds no deadline of its
// own: the request then waits until the caller's ctx is done.
func New(conn *nats.Conn, timeout time.Duration) *NATSEnsemble {
	return &NATSEnsemble{conn: conn, timeout: timeout}
}

// WithResilience attaches a circuit breaker and rate limiter to e and
// returns e for chaining. Either may be nil to skip that guard.
func (e *NATSEnsemble) WithResilience(breaker *resilience.Breaker, limiter *resilience.Limiter) *NATSEnsemble {
	e.breaker = breaker
	e.limiter = limiter
	return e
}

// Invoke satisfies declarative.Ensemble.
func (e *NATSEnsemble) Invoke(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	body, err := json.Marshal(request{Name: name, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("ensemble %q: encode request: %w", name, err)
	}

	msg := nats.NewMsg(subjectPrefix + name)
	msg.Data = body

	var reply *nats.Msg
	roundTrip := func(ctx context.Context) error {
		var rtErr error
		reply, rtErr = e.conn.RequestMsgWithContext(ctx, msg)
		return rtErr
	}

	guarded := roundTrip
	if e.breaker != nil {
		inner := guarded
		guarded = func(ctx context.Context) error { return e.breaker.Call(ctx, inner) }
	}
	if e.limiter != nil {
		inner := guarded
		guarded = func(ctx context.Context) error { return e.limiter.CallWait(ctx, inner) }
	}

	if err := guarded(ctx); err != nil {
		return nil, fmt.Errorf("ensemble %q: %w", name, err)
	}

	var resp response
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return nil, fmt.Errorf("ensemble %q: decode response: %w", name, err)
	}
	return resp.Result, nil
}
